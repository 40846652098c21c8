package pipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/rulemorph/rulemorph/internal/value"
)

// registerDateOps implements `date_format(fmt_in, fmt_out, tz?)` and
// `to_unixtime(fmt?, tz?)`. Format strings use strftime-style
// directives (`%Y-%m-%d`), translated to Go's reference-time layout,
// since that is the format grammar the original chrono-based
// implementation exposes to rule authors.
func registerDateOps(r *Registry) {
	r.register(Op{Name: "date_format", MinArgs: 2, MaxArgs: 3, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		fmtIn, ok := args[0].(value.String)
		if !ok {
			return nil, fmt.Errorf("date_format: fmt_in must be string: %w", value.ErrTypeMismatch)
		}
		fmtOut, ok := args[1].(value.String)
		if !ok {
			return nil, fmt.Errorf("date_format: fmt_out must be string: %w", value.ErrTypeMismatch)
		}
		loc, err := tzArg(args, 2)
		if err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(strftimeToGo(string(fmtIn)), string(p.(value.String)), loc)
		if err != nil {
			return nil, fmt.Errorf("date_format: parsing %q with %q: %w", string(p.(value.String)), string(fmtIn), err)
		}
		return value.String(t.In(loc).Format(strftimeToGo(string(fmtOut)))), nil
	}})
	r.register(Op{Name: "to_unixtime", MinArgs: 0, MaxArgs: 2, Accepts: acceptsString, Fn: func(p value.Value, args []value.Value) (value.Value, error) {
		layout := time.RFC3339
		if len(args) >= 1 {
			f, ok := args[0].(value.String)
			if !ok {
				return nil, fmt.Errorf("to_unixtime: fmt must be string: %w", value.ErrTypeMismatch)
			}
			layout = strftimeToGo(string(f))
		}
		loc, err := tzArg(args, 1)
		if err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(layout, string(p.(value.String)), loc)
		if err != nil {
			return nil, fmt.Errorf("to_unixtime: parsing %q: %w", string(p.(value.String)), err)
		}
		return value.Int(t.Unix()), nil
	}})
}

func tzArg(args []value.Value, idx int) (*time.Location, error) {
	if idx >= len(args) {
		return time.UTC, nil
	}
	tz, ok := args[idx].(value.String)
	if !ok {
		return nil, fmt.Errorf("date: tz must be string: %w", value.ErrTypeMismatch)
	}
	loc, err := time.LoadLocation(string(tz))
	if err != nil {
		return nil, fmt.Errorf("date: unknown timezone %q: %w", string(tz), err)
	}
	return loc, nil
}

var strftimeDirectives = []struct {
	directive string
	layout    string
}{
	{"%Y", "2006"},
	{"%y", "06"},
	{"%m", "01"},
	{"%d", "02"},
	{"%H", "15"},
	{"%I", "03"},
	{"%M", "04"},
	{"%S", "05"},
	{"%p", "PM"},
	{"%Z", "MST"},
	{"%z", "-0700"},
	{"%A", "Monday"},
	{"%a", "Mon"},
	{"%B", "January"},
	{"%b", "Jan"},
	{"%%", "%"},
}

// strftimeToGo translates strftime-style directives into Go's
// reference-time layout string.
func strftimeToGo(f string) string {
	out := f
	for _, d := range strftimeDirectives {
		out = strings.ReplaceAll(out, d.directive, d.layout)
	}
	return out
}
