package sqltools

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

func (t *Tools) updateMetadataDescription(ctx context.Context, args tools.Arguments) (string, error) {
	var (
		table       = args.String("table_name")
		column      = args.String("column_name")
		enumValue   = args.String("enum_value")
		description = args.String("description")
		message     string
		err         error
	)

	switch {
	case column == "":
		err = t.store.SetTableDescription(ctx, table, description)
		message = fmt.Sprintf("updated the description of table %s", table)
	case enumValue == "":
		err = t.store.SetColumnDescription(ctx, table, column, description)
		message = fmt.Sprintf("updated the description of column %s of table %s", column, table)
	default:
		err = t.store.SetEnumValueDescription(ctx, table, column, enumValue, description)
		message = fmt.Sprintf("updated the description of enum value %s of column %s of table %s", enumValue, column, table)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return failure(err), nil
	}
	return encode(Outcome{Success: true, Message: message}), nil
}

func (t *Tools) updateBusinessTerm(ctx context.Context, args tools.Arguments) (string, error) {
	kind := database.TermKind(args.String("term_type"))
	name := args.String("term_name")
	if !kind.Valid() {
		return failure(fmt.Errorf("term_type must be %q or %q", database.TermKindFreeshot, database.TermKindTerm)), nil
	}

	label := "business term"
	if kind == database.TermKindFreeshot {
		label = "query example"
	}

	likes, err := t.store.IncrementLikes(ctx, kind, name)
	if errors.Is(err, database.ErrTermNotFound) {
		return failure(fmt.Errorf("no %s named %s", label, name)), nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return failure(err), nil
	}
	return encode(Outcome{
		Success: true,
		Message: fmt.Sprintf("updated the likes of %s %s to %d", label, name, likes),
	}), nil
}
