package booster

import (
	"errors"

	"github.com/xh3b4sd/tracer"
)

var invalidModelError = &tracer.Error{
	Kind: "invalidModelError",
	Desc: "The model artefact does not describe a gbtree model in the XGBoost JSON format.",
}

func IsInvalidModel(err error) bool {
	return errors.Is(err, invalidModelError)
}

var invalidInputError = &tracer.Error{
	Kind: "invalidInputError",
	Desc: "The given feature vector does not match the number of features the model was trained with.",
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, invalidInputError)
}

var notRestoredError = &tracer.Error{
	Kind: "notRestoredError",
	Desc: "Predict must not be called before the model artefact got restored.",
}

func IsNotRestored(err error) bool {
	return errors.Is(err, notRestoredError)
}
