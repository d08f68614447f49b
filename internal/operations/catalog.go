package operations

import (
	"errors"
	"fmt"
	"strings"
)

const noPing = "-Pn"

var (
	targetParam = Parameter{Name: "target", Type: TypeString, Description: "IP address or hostname"}
	portsParam  = Parameter{Name: "ports", Type: TypeString, Description: "Port list or range (e.g. 20-80 or 22,80,443)"}
	portParam   = Parameter{Name: "port", Type: TypeString, Description: "Port number (e.g. 80)"}
	topNParam   = Parameter{
		Name:        "num_ports",
		Type:        TypeInteger,
		Description: "Number of top ports to scan",
		Default:     10,
		Min:         intPtr(1),
	}
)

// NewCatalog registers the full operation catalog and seals the registry.
func NewCatalog() (*Registry, error) {
	r := NewRegistry()
	for _, op := range catalog() {
		if err := r.Register(op); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// MustCatalog is NewCatalog for process initialization; a broken catalog is a
// programming error.
func MustCatalog() *Registry {
	r, err := NewCatalog()
	if err != nil {
		panic(fmt.Sprintf("operations: catalog definition: %v", err))
	}
	return r
}

func catalog() []Operation {
	ops := []Operation{
		// host discovery
		targetScan("ping_scan", "Perform a ping scan to check if the host is up.", "-sn"),
		{
			Name:        "ping_subnet_scan",
			Description: "Perform a ping scan to discover active devices on a subnet.",
			Params:      []Parameter{{Name: "subnet", Type: TypeString, Description: "Network subnet (e.g. 192.168.1.1/24)"}},
			Build: func(v *Values) []string {
				return []string{"-sP", v.String("subnet")}
			},
		},

		// target selection
		targetScan("simple_scan", "Perform a basic nmap scan on the target.", "-T4"),
		targetScan("single_host_scan", "Scan a single host for the 1000 well-known ports."),
		targetScan("verbose_scan", "Perform a scan with verbose output for detailed information.", "-v"),
		{
			Name:        "scan_multiple_hosts",
			Description: "Scan multiple hosts in one run.",
			Params:      []Parameter{{Name: "hosts", Type: TypeString, Description: "Space-separated list of hosts (e.g. \"192.168.1.1 192.168.1.2\")"}},
			Build: func(v *Values) []string {
				return v.Fields("hosts")
			},
		},
		{
			Name:        "scan_ip_range",
			Description: "Scan a range of IP addresses using wildcards or hyphens.",
			Params:      []Parameter{{Name: "ip_range", Type: TypeString, Description: "IP range (e.g. \"192.168.1.*\" or \"192.168.1.1-255\")"}},
			Build: func(v *Values) []string {
				return []string{v.String("ip_range")}
			},
		},
		{
			Name:        "scan_from_file",
			Description: "Scan hosts listed in a file.",
			Params:      []Parameter{{Name: "file_path", Type: TypeString, Description: "Path to a file listing IP addresses or hostnames"}},
			Build: func(v *Values) []string {
				return []string{"-iL", v.String("file_path")}
			},
		},

		// port selection
		valueScan("port_scan", "Scan specific ports on a target.", "-p", portsParam, "-T4"),
		valueScan("port_scan_no_ping", "Scan specific ports without ping (skip host discovery).", "-p", portsParam, noPing),
		valueScan("scan_specific_port", "Scan a specific port on the target.", "-p", portParam, "-T4"),
		valueScan("scan_port_range", "Scan a range of ports on the target.", "-p",
			Parameter{Name: "port_range", Type: TypeString, Description: "Port range (e.g. 1-1000)"}, "-T4"),
		valueScan("scan_tcp_port", "Scan a specific TCP port on the target.", "-p",
			Parameter{Name: "port", Type: TypeString, Description: "TCP port (e.g. \"T:80,443\" or just \"80\")"}),
		valueScan("scan_top_ports", "Scan the top N most common ports.", "--top-ports", topNParam),
		valueScan("top_ports_scan_no_ping", "Scan the top N ports without ping (skip host discovery).", "--top-ports", topNParam, noPing),

		// detection
		targetScan("os_detection", "Attempt OS detection on a target.", "-O"),
		targetScan("service_version_detection", "Detect the versions of services running on open ports.", "-sV"),
		targetScan("aggressive_scan", "Perform an aggressive scan (OS, service detection, scripts, traceroute).", "-A"),
		targetScan("full_scan", "Perform a full TCP scan with service detection.", "-sS", "-sV", "-T4", "-A"),
		targetScan("traceroute_scan", "Perform a traceroute to the target.", "--traceroute"),
		targetScan("http_title_scan", "Scan for HTTP titles on port 80.", "-p", "80", "--script", "http-title"),

		// output formats
		valueScan("scan_with_normal_output", "Perform a scan and save results to a text file.", "-oN",
			Parameter{Name: "output_file", Type: TypeString, Description: "Output filename", Default: "output.txt"}),
		valueScan("scan_with_xml_output", "Perform a scan and save results to an XML file.", "-oX",
			Parameter{Name: "output_file", Type: TypeString, Description: "Output filename", Default: "output.xml"}),
		valueScan("scan_with_all_formats", "Perform a scan and save results in all formats (.nmap, .xml, .gnmap).", "-oA",
			Parameter{Name: "output_base", Type: TypeString, Description: "Base filename for outputs", Default: "output"}),

		{
			Name:        "nmap_help",
			Description: "Display nmap help with all available options and flags.",
			Build: func(*Values) []string {
				return []string{"-h"}
			},
		},
	}

	techniques := []struct {
		name, flag, what string
	}{
		{"stealth_scan", "-sS", "stealth SYN scan without completing the TCP handshake"},
		{"tcp_connect_scan", "-sT", "TCP connect scan (full TCP handshake)"},
		{"udp_scan", "-sU", "UDP port scan"},
		{"fin_scan", "-sF", "FIN scan"},
		{"null_scan", "-sN", "NULL scan (no flags set)"},
		{"xmas_scan", "-sX", "Xmas scan (FIN, PSH and URG flags set)"},
	}
	for _, t := range techniques {
		ops = append(ops,
			targetScan(t.name, "Perform a "+t.what+".", t.flag),
			targetScan(t.name+"_no_ping", "Perform a "+t.what+" without ping (skip host discovery).", t.flag, noPing),
		)
	}
	ops = append(ops,
		targetScan("os_detection_no_ping", "Attempt OS detection without ping (skip host discovery).", "-O", noPing),
		targetScan("service_version_scan_no_ping", "Perform service version detection without ping (skip host discovery).", "-sV", noPing),
		targetScan("aggressive_scan_no_ping", "Perform an aggressive scan without ping (skip host discovery).", "-A", noPing),
	)

	return append(ops, vulscanOperations()...)
}

// targetScan declares an operation whose vector is the fixed flags followed
// by the target.
func targetScan(name, description string, flags ...string) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Params:      []Parameter{targetParam},
		Build: func(v *Values) []string {
			args := make([]string, 0, len(flags)+1)
			args = append(args, flags...)
			return append(args, v.String("target"))
		},
	}
}

// valueScan declares an operation whose vector is flag and the value of one
// extra parameter, then any fixed extra flags, then the target.
func valueScan(name, description, flag string, value Parameter, extra ...string) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Params:      []Parameter{targetParam, value},
		Build: func(v *Values) []string {
			args := make([]string, 0, len(extra)+3)
			args = append(args, flag, v.Arg(value.Name))
			args = append(args, extra...)
			return append(args, v.String("target"))
		},
	}
}

func noSingleQuote(s string) error {
	if strings.Contains(s, "'") {
		return errors.New("single quotes are not allowed")
	}
	return nil
}
