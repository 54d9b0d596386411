package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so problems read like the runbook file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRunbook checks the runbook structure without any I/O: required
// fields, unique action ids and resolvable dependencies. Every problem is
// collected into a single *ValidationError.
func ValidateRunbook(rb *Runbook) error {
	verr := &ValidationError{}
	if rb == nil {
		verr.add("runbook is nil")
		return verr
	}

	checkStruct(verr, "runbook", rb)

	seen := make(map[string]int, len(rb.Actions))
	for i, action := range rb.Actions {
		where := fmt.Sprintf("actions[%d]", i)
		if isNilAction(action) {
			verr.add("%s: action is nil", where)
			continue
		}
		checkStruct(verr, where, action)

		id := action.ActionID()
		if id == "" {
			continue
		}
		if first, dup := seen[id]; dup {
			verr.add("duplicate action id %q (actions[%d] and actions[%d])", id, first, i)
			continue
		}
		seen[id] = i
	}

	for _, action := range rb.Actions {
		if isNilAction(action) {
			continue
		}
		for _, dep := range action.Dependencies() {
			switch _, ok := seen[dep]; {
			case dep == action.ActionID():
				verr.add("action %q depends on itself", dep)
			case !ok:
				verr.add("action %q depends on unknown action %q", action.ActionID(), dep)
			}
		}
	}

	return verr.orNil()
}

func checkStruct(verr *ValidationError, where string, v any) {
	err := structValidator.Struct(v)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("%s: %v", where, err)
		return
	}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		// Drop the Go type name prefix.
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Tag() == "required" {
			verr.add("%s: %s is required", where, field)
			continue
		}
		verr.add("%s: %s failed %q", where, field, fe.Tag())
	}
}

func isNilAction(a Action) bool {
	switch t := a.(type) {
	case nil:
		return true
	case *EnsureAction:
		return t == nil
	case *DeleteAction:
		return t == nil
	}
	return false
}
