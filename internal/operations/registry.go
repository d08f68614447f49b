package operations

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps operation names to their definitions. It is filled during
// startup and sealed; after Seal it is only read, so concurrent lookups need
// no locking.
type Registry struct {
	items  map[string]Operation
	sealed bool
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Operation)}
}

// Register adds one operation. The builder is probed once with sample values
// to confirm it reads exactly the declared parameters.
func (r *Registry) Register(op Operation) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if err := validateDefinition(op); err != nil {
		return err
	}
	if _, ok := r.items[op.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateOperation, op.Name)
	}
	r.items[op.Name] = op
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.sealed = true
}

// Resolve returns an operation by exact name.
func (r *Registry) Resolve(name string) (Operation, bool) {
	op, ok := r.items[name]
	return op, ok
}

// List returns every operation ordered by name.
func (r *Registry) List() []Operation {
	list := make([]Operation, 0, len(r.items))
	for _, op := range r.items {
		list = append(list, op)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func (r *Registry) Len() int {
	return len(r.items)
}

// Plan is a validated call: the operation, its bound values and the argument
// vector to execute.
type Plan struct {
	Operation Operation
	Args      []string
	values    *Values
}

// Plan resolves name, binds args and builds the argument vector without
// executing anything.
func (r *Registry) Plan(name string, args map[string]any) (Plan, error) {
	op, ok := r.Resolve(name)
	if !ok {
		return Plan{}, fmt.Errorf("%w: no operation named %q", ErrUnknownOperation, name)
	}
	values, err := bind(op, args)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Operation: op, Args: op.Build(values), values: values}, nil
}

// PostProcess applies the operation's post step, if any, to stdout.
func (p Plan) PostProcess(stdout string) string {
	if p.Operation.Post == nil {
		return stdout
	}
	return p.Operation.Post(stdout, p.values)
}

func validateDefinition(op Operation) error {
	if !isValidName(op.Name) {
		return definitionf("invalid name %q", op.Name)
	}
	if strings.TrimSpace(op.Description) == "" {
		return definitionf("%s: description is required", op.Name)
	}
	if op.Build == nil {
		return definitionf("%s: builder is required", op.Name)
	}

	sample := make(map[string]any, len(op.Params))
	for _, p := range op.Params {
		if !isValidName(p.Name) {
			return definitionf("%s: invalid parameter name %q", op.Name, p.Name)
		}
		if _, ok := sample[p.Name]; ok {
			return definitionf("%s: parameter %q declared twice", op.Name, p.Name)
		}
		if p.Type == TypeEnum && len(p.Choices) == 0 {
			return definitionf("%s: enum parameter %q has no choices", op.Name, p.Name)
		}
		if !p.Required() {
			if _, err := p.coerce(p.Default); err != nil {
				return definitionf("%s: default for %q: %v", op.Name, p.Name, err)
			}
		}
		sample[p.Name] = sampleValue(p)
	}

	values, err := bind(op, sample)
	if err != nil {
		return definitionf("%s: sample binding failed: %v", op.Name, err)
	}
	op.Build(values)
	if op.Post != nil {
		op.Post("", values)
	}

	for _, p := range op.Params {
		if _, ok := values.used[p.Name]; !ok {
			return definitionf("%s: parameter %q declared but not used by builder", op.Name, p.Name)
		}
		delete(values.used, p.Name)
	}
	if len(values.used) > 0 {
		undeclared := make([]string, 0, len(values.used))
		for name := range values.used {
			undeclared = append(undeclared, name)
		}
		sort.Strings(undeclared)
		return definitionf("%s: builder reads undeclared parameter %q", op.Name, undeclared[0])
	}
	return nil
}

func sampleValue(p Parameter) any {
	if !p.Required() {
		return p.Default
	}
	switch p.Type {
	case TypeEnum:
		return p.Choices[0]
	case TypeInteger:
		if p.Min != nil {
			return *p.Min
		}
		return 1
	default:
		return "sample"
	}
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
	}
	return true
}
