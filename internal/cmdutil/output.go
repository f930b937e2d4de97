package cmdutil

import (
	"errors"

	"github.com/opmodel/strata/internal/builder"
	"github.com/opmodel/strata/internal/cmdtypes"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
)

// PrintErrors logs every leaf of err, naming the option path or recipe key
// when the leaf carries one.
func PrintErrors(msg string, err error) {
	output.Error(msg)
	for _, e := range oerrors.Flatten(err) {
		var optErr *oerrors.OptionError
		var recipeErr *oerrors.RecipeError
		var detailErr *oerrors.DetailError

		switch {
		case errors.As(e, &optErr):
			output.Error(optErr.Kind.Error(), "option", optErr.Path, "source", optErr.Source, "detail", optErr.Detail)
		case errors.As(e, &recipeErr) && recipeErr.Key != "":
			output.Error(e.Error(), "recipe", recipeErr.Recipe, "key", recipeErr.Key)
		case errors.As(e, &detailErr):
			output.Details(detailErr.Error())
		default:
			output.Error(e.Error())
		}
	}
}

// Exit renders err once and wraps it so main does not print it again.
// The exit code follows the error family.
func Exit(msg string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *cmdtypes.ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	PrintErrors(msg, err)
	return &cmdtypes.ExitError{Err: err, Code: oerrors.ExitCode(err), Printed: true}
}

// WriteReport writes one status line per recipe of a build report, in plan
// order.
func WriteReport(report *builder.Report) {
	for _, name := range report.Order {
		res := report.Results[name]
		line := output.FormatRecipeLine(name, string(res.Status))
		if res.Status == builder.StatusFailed {
			output.Error(line)
			continue
		}
		output.Info(line)
	}
}
