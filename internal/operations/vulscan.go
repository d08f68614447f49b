package operations

import (
	"fmt"
	"strings"
)

const (
	vulscanScript   = "--script=vulscan/vulscan.nse"
	defaultTemplate = "{id} - {title}"
)

// VulscanDatabases lists the CSV databases shipped with vulscan.
var VulscanDatabases = []string{
	"cve.csv",
	"exploitdb.csv",
	"openvas.csv",
	"osvdb.csv",
	"scipvuldb.csv",
	"securityfocus.csv",
	"securitytracker.csv",
	"xforce.csv",
}

var databaseParam = Parameter{
	Name:        "database",
	Type:        TypeEnum,
	Description: "Vulscan database file",
	Default:     "cve.csv",
	Choices:     VulscanDatabases,
}

func vulscanOperations() []Operation {
	return []Operation{
		{
			Name:        "vulscan_basic",
			Description: "Perform a vulnerability scan using vulscan with a specific database.",
			Params:      []Parameter{targetParam, databaseParam},
			Build: func(v *Values) []string {
				return vulscanArgs(v, "vulscandb="+v.String("database"))
			},
		},
		{
			Name:        "vulscan_output_limit",
			Description: "Perform a vulnerability scan and limit the number of result lines.",
			Params: []Parameter{
				targetParam,
				databaseParam,
				{Name: "limit", Type: TypeInteger, Description: "Maximum number of output lines", Default: 10, Min: intPtr(0)},
			},
			Build: func(v *Values) []string {
				scriptArgs := fmt.Sprintf("vulscandb=%s,vulscanshowall=0,vulscanoutput='%s'", v.String("database"), defaultTemplate)
				return vulscanArgs(v, scriptArgs)
			},
			Post: func(stdout string, v *Values) string {
				return FirstLines(stdout, v.Int("limit"))
			},
		},
		{
			Name:        "vulscan_interactive",
			Description: "Run vulscan in interactive mode to select vulnerabilities to report.",
			Params:      []Parameter{targetParam, databaseParam},
			Build: func(v *Values) []string {
				return vulscanArgs(v, "vulscandb="+v.String("database")+",vulscaninteractive=1")
			},
		},
		{
			Name:        "vulscan_custom_output",
			Description: "Run vulscan with a custom output template.",
			Params: []Parameter{
				targetParam,
				databaseParam,
				{
					Name:        "custom_template",
					Type:        TypeString,
					Description: "Vulscan output template (e.g. '{id} - {title}')",
					Default:     defaultTemplate,
					Check:       noSingleQuote,
				},
			},
			Build: func(v *Values) []string {
				scriptArgs := fmt.Sprintf("vulscandb=%s,vulscanoutput='%s'", v.String("database"), v.String("custom_template"))
				return vulscanArgs(v, scriptArgs)
			},
		},
	}
}

// vulscanArgs keeps the script arguments in a single element.
func vulscanArgs(v *Values, scriptArgs string) []string {
	return []string{"-sV", vulscanScript, "--script-args", scriptArgs, v.String("target")}
}

// FirstLines returns the first n lines of s, in order, joined by "\n".
func FirstLines(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
