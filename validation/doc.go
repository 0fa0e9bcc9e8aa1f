// Package validation checks inbound documents: struct tags through
// go-playground/validator, plus a Validator for checks tags cannot express.
//
//	type runRequest struct {
//	    Nodes []node `json:"nodes" validate:"required,min=1,dive"`
//	}
//	err := validation.Validate(req)
//
//	v := validation.New()
//	v.Unique("nodes.id", ids).OneOf("engine", engine, "ws", "simple")
//	err = v.Validate()
//
// Both return an INVALID_INPUT *errors.AppError with a "fields" detail.
package validation
