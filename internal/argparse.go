package pyext

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// ParamDescription describes one exposed method parameter. The order of a
// descriptor table is the positional order of the method.
type ParamDescription struct {
	Name       string
	IsOptional bool
}

// getKwargs returns a view of the keyword dict, or nil when the caller passed
// no keywords. The returned Dict holds its own reference.
func getKwargs(py Python, kwargs Handle) (*Dict, error) {
	if kwargs == NullHandle {
		return nil, nil
	}

	obj, err := py.FromBorrowed(kwargs)
	if err != nil {
		return nil, err
	}

	d, err := py.AsDict(obj)
	if err != nil {
		obj.Release(py)
		return nil, err
	}
	return &d, nil
}

// ParseArgs matches args and kwargs against params and fills output with
// borrowed references, one per descriptor. A NULL Object marks an optional
// parameter that was not given.
func ParseArgs(py Python, location string, params []ParamDescription, args Tuple, kwargs *Dict, output []Object) error {
	nargs := args.Len(py)
	if nargs > len(params) {
		return &PyErr{
			Type:     TypeError,
			Message:  formatAtMost(len(params), nargs),
			Location: location,
		}
	}

	keywords := map[string]string{}
	if kwargs != nil {
		for _, key := range kwargs.Keys(py) {
			normalized := py.e.normalizeName(key)
			if _, ok := keywords[normalized]; ok {
				return &PyErr{
					Type:     TypeError,
					Message:  fmt.Sprintf("got multiple values for keyword argument '%s'", normalized),
					Location: location,
				}
			}
			keywords[normalized] = key
		}
	}

	for i := range params {
		var kwarg Object
		found := false
		if key, ok := keywords[py.e.normalizeName(params[i].Name)]; ok {
			kwarg, found = kwargs.GetItem(py, key)
			delete(keywords, py.e.normalizeName(params[i].Name))
		}

		switch {
		case found:
			if i < nargs {
				return &PyErr{
					Type:     TypeError,
					Message:  fmt.Sprintf("Argument given by name ('%s') and position (%d)", params[i].Name, i+1),
					Location: location,
				}
			}
			output[i] = kwarg
		case i < nargs:
			output[i] = args.GetItem(py, i)
		default:
			output[i] = Object{}
			if !params[i].IsOptional {
				return &PyErr{
					Type:     TypeError,
					Message:  fmt.Sprintf("Required argument ('%s') (pos %d) not found", params[i].Name, i+1),
					Location: location,
				}
			}
		}
	}

	for _, key := range kwargs.orderedKeys(py) {
		if _, ok := keywords[py.e.normalizeName(key)]; ok {
			return &PyErr{
				Type:     TypeError,
				Message:  fmt.Sprintf("'%s' is an invalid keyword argument for this function", key),
				Location: location,
			}
		}
	}

	return nil
}

func (d *Dict) orderedKeys(py Python) []string {
	if d == nil {
		return nil
	}
	return d.Keys(py)
}

func (e *engine) normalizeName(name string) string {
	if !e.config.normalizeKeywords {
		return name
	}
	return norm.NFKC.String(name)
}

func formatAtMost(params, given int) string {
	s := "s"
	if params == 1 {
		s = ""
	}
	return fmt.Sprintf("function takes at most %d argument%s (%d given)", params, s, given)
}
