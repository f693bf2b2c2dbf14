// Package repository provides SQL persistence for directory entries. One implementation
// serves sqlite, PostgreSQL and MySQL; engine differences are handled by database.Dialect.
package repository

import (
	"strings"

	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// maxFilterDepth bounds the nesting of And/Or/Not.
const maxFilterDepth = 64

// likeEscape is the LIKE escape character. '!' avoids the backslash quoting differences
// between engines.
const likeEscape = "!"

// column describes how a built-in attribute maps onto SQL.
type column struct {
	expr string
	// alwaysPresent marks columns that can never be empty (ids).
	alwaysPresent bool
	// caseInsensitive compares lowercased values.
	caseInsensitive bool
	// normalize is applied to equality values before binding.
	normalize func(string) string
}

var userColumns = map[string]column{
	domain.AttrUserID:      {expr: "u.user_id", alwaysPresent: true, normalize: domain.NormalizeUserID},
	domain.AttrEmail:       {expr: "u.email", caseInsensitive: true},
	domain.AttrDisplayName: {expr: "u.display_name"},
	domain.AttrFirstName:   {expr: "u.first_name"},
	domain.AttrLastName:    {expr: "u.last_name"},
	domain.AttrUUID:        {expr: "u.uuid", alwaysPresent: true, normalize: strings.ToLower},
}

var groupColumns = map[string]column{
	domain.AttrGroupID:     {expr: "g.group_id", alwaysPresent: true, normalize: strings.ToLower},
	domain.AttrDisplayName: {expr: "g.display_name", caseInsensitive: true},
	domain.AttrUUID:        {expr: "g.uuid", alwaysPresent: true, normalize: strings.ToLower},
}

// compiledFilter is a SQL boolean expression with "?" placeholders and its arguments.
type compiledFilter struct {
	where string
	args  []any
}

// filterCompiler turns a domain.Filter into a SQL predicate, validating attribute names
// on the way. A nil filter compiles to a predicate matching every row.
type filterCompiler struct {
	columns map[string]column
	// leaf compiles entity-specific attributes that are not plain columns.
	leaf func(c *filterCompiler, f *domain.Filter, attr string) (string, error)
	args []any
}

// compileUserFilter compiles a filter over users aliased "u". declared holds the names of
// the custom attributes in the schema.
func compileUserFilter(f *domain.Filter, declared map[string]struct{}) (compiledFilter, error) {
	c := &filterCompiler{
		columns: userColumns,
		leaf: func(c *filterCompiler, f *domain.Filter, attr string) (string, error) {
			switch attr {
			case domain.AttrMemberOf:
				return c.membership(f, attr,
					"EXISTS (SELECT 1 FROM memberships m JOIN directory_groups mg ON mg.group_id = m.group_id "+
						"WHERE m.user_id = u.user_id AND LOWER(mg.display_name) = ?)",
					"EXISTS (SELECT 1 FROM memberships m WHERE m.user_id = u.user_id)",
					strings.ToLower)
			case domain.AttrMemberOfID:
				return c.membership(f, attr,
					"EXISTS (SELECT 1 FROM memberships m WHERE m.user_id = u.user_id AND m.group_id = ?)",
					"EXISTS (SELECT 1 FROM memberships m WHERE m.user_id = u.user_id)",
					strings.ToLower)
			}
			if _, ok := declared[attr]; ok {
				return c.customAttribute(f, attr)
			}
			return "", apperrors.Wrapf(domain.ErrUnknownAttribute, "user attribute %q", attr)
		},
	}
	return c.compile(f)
}

// compileGroupFilter compiles a filter over groups aliased "g".
func compileGroupFilter(f *domain.Filter) (compiledFilter, error) {
	c := &filterCompiler{
		columns: groupColumns,
		leaf: func(c *filterCompiler, f *domain.Filter, attr string) (string, error) {
			if attr == domain.AttrMember {
				return c.membership(f, attr,
					"EXISTS (SELECT 1 FROM memberships m WHERE m.group_id = g.group_id AND m.user_id = ?)",
					"EXISTS (SELECT 1 FROM memberships m WHERE m.group_id = g.group_id)",
					domain.NormalizeUserID)
			}
			return "", apperrors.Wrapf(domain.ErrUnknownAttribute, "group attribute %q", attr)
		},
	}
	return c.compile(f)
}

func (c *filterCompiler) compile(f *domain.Filter) (compiledFilter, error) {
	if f == nil {
		return compiledFilter{where: "1=1"}, nil
	}
	where, err := c.node(f, 0)
	if err != nil {
		return compiledFilter{}, err
	}
	return compiledFilter{where: where, args: c.args}, nil
}

func (c *filterCompiler) node(f *domain.Filter, depth int) (string, error) {
	if f == nil {
		return "", apperrors.Wrap(domain.ErrInvalidFilter, "nil sub-filter")
	}
	if depth > maxFilterDepth {
		return "", apperrors.Wrap(domain.ErrInvalidFilter, "filter nested too deeply")
	}

	switch f.Kind {
	case domain.FilterAnd:
		return c.combine(f.Children, " AND ", "1=1", depth)
	case domain.FilterOr:
		return c.combine(f.Children, " OR ", "1=0", depth)
	case domain.FilterNot:
		if len(f.Children) != 1 {
			return "", apperrors.Wrap(domain.ErrInvalidFilter, "not requires exactly one operand")
		}
		inner, err := c.node(f.Children[0], depth+1)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case domain.FilterEquality, domain.FilterPresent, domain.FilterSubstring:
		attr := strings.ToLower(strings.TrimSpace(f.Attribute))
		if attr == "" {
			return "", apperrors.Wrap(domain.ErrInvalidFilter, "missing attribute")
		}
		if col, ok := c.columns[attr]; ok {
			return c.column(f, col)
		}
		return c.leaf(c, f, attr)
	default:
		return "", apperrors.Wrapf(domain.ErrInvalidFilter, "unsupported filter kind %s", f.Kind)
	}
}

func (c *filterCompiler) combine(children []*domain.Filter, op, empty string, depth int) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		part, err := c.node(child, depth+1)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+part+")")
	}
	return strings.Join(parts, op), nil
}

func (c *filterCompiler) column(f *domain.Filter, col column) (string, error) {
	switch f.Kind {
	case domain.FilterEquality:
		value := f.Value
		if col.normalize != nil {
			value = col.normalize(value)
		}
		if col.caseInsensitive {
			c.args = append(c.args, strings.ToLower(value))
			return "LOWER(" + col.expr + ") = ?", nil
		}
		c.args = append(c.args, value)
		return col.expr + " = ?", nil
	case domain.FilterPresent:
		if col.alwaysPresent {
			return "1=1", nil
		}
		return col.expr + " <> ''", nil
	default:
		c.args = append(c.args, likePattern(f))
		return "LOWER(" + col.expr + ") LIKE ? ESCAPE '" + likeEscape + "'", nil
	}
}

func (c *filterCompiler) membership(
	f *domain.Filter,
	attr, eqExpr, presentExpr string,
	normalize func(string) string,
) (string, error) {
	switch f.Kind {
	case domain.FilterEquality:
		value := f.Value
		if normalize != nil {
			value = normalize(value)
		}
		c.args = append(c.args, value)
		return eqExpr, nil
	case domain.FilterPresent:
		return presentExpr, nil
	default:
		return "", apperrors.Wrapf(domain.ErrInvalidFilter, "substring match is not supported on %q", attr)
	}
}

func (c *filterCompiler) customAttribute(f *domain.Filter, attr string) (string, error) {
	const base = "EXISTS (SELECT 1 FROM user_attributes a WHERE a.user_id = u.user_id AND a.name = ?"

	c.args = append(c.args, attr)
	switch f.Kind {
	case domain.FilterEquality:
		c.args = append(c.args, f.Value)
		return base + " AND a.value = ?)", nil
	case domain.FilterPresent:
		return base + ")", nil
	default:
		c.args = append(c.args, likePattern(f))
		return base + " AND LOWER(a.value) LIKE ? ESCAPE '" + likeEscape + "')", nil
	}
}

// likePattern builds a lowercased LIKE pattern from a substring filter.
func likePattern(f *domain.Filter) string {
	var b strings.Builder
	b.WriteString(escapeLike(strings.ToLower(f.Initial)))
	b.WriteByte('%')
	for _, part := range f.Any {
		if part == "" {
			continue
		}
		b.WriteString(escapeLike(strings.ToLower(part)))
		b.WriteByte('%')
	}
	b.WriteString(escapeLike(strings.ToLower(f.Final)))
	return b.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}
