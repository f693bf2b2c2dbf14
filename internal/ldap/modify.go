package ldap

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// Modification operations.
const (
	modAdd     int64 = 0
	modDelete  int64 = 1
	modReplace int64 = 2
)

// passwordField marks a userPassword change in a user modification plan.
const passwordField = "password"

type change struct {
	op     int64
	attr   string
	values []string
}

func parseModifyRequest(op *ber.Packet) (string, []change, error) {
	if len(op.Children) != 2 {
		return "", nil, newError(ResultProtocolError, "malformed modify request")
	}
	var changes []change
	for _, c := range op.Children[1].Children {
		if len(c.Children) != 2 || len(c.Children[1].Children) != 2 {
			return "", nil, newError(ResultProtocolError, "malformed change")
		}
		operation, ok := packetInt(c.Children[0])
		if !ok {
			return "", nil, newError(ResultProtocolError, "malformed change operation")
		}
		mod := c.Children[1]
		ch := change{op: operation, attr: packetString(mod.Children[0])}
		for _, v := range mod.Children[1].Children {
			ch.values = append(ch.values, packetString(v))
		}
		changes = append(changes, ch)
	}
	return packetString(op.Children[0]), changes, nil
}

// modify applies a ModifyRequest. Every change is validated and authorized before the
// first write, and the writes share one transaction, so a failed request leaves the entry
// untouched.
func (c *conn) modify(ctx context.Context, op *ber.Packet) error {
	principal, err := c.session.Principal()
	if err != nil {
		return newError(ResultInsufficientAccessRights, "bind required")
	}

	name, changes, err := parseModifyRequest(op)
	if err != nil {
		return err
	}
	target, err := parseDN(name)
	if err != nil {
		return err
	}

	switch kind, value := c.server.tree.classify(target); kind {
	case dnUser:
		return c.modifyUser(ctx, principal, value, changes)
	case dnGroup:
		return c.modifyGroup(ctx, principal, value, changes)
	case dnOutside:
		return newError(ResultNoSuchObject, "no such object %q", name)
	default:
		return newError(ResultUnwillingToPerform, "entry %q cannot be modified", name)
	}
}

// userPlan is the outcome of validating the changes of a user modification.
type userPlan struct {
	input    domain.UpdateUserInput
	password *string
	// touched lists the directory fields and attribute names the plan changes.
	touched []string
}

func (c *conn) modifyUser(ctx context.Context, principal *Principal, userID string, changes []change) error {
	self := principal.UserID == userID
	if principal.IsReadonly() || (!principal.IsAdmin() && !self && !principal.IsPasswordManager()) {
		return newError(ResultInsufficientAccessRights, "insufficient access rights")
	}

	backend := c.server.backend
	if _, err := backend.GetUserDetails(ctx, userID); err != nil {
		return err
	}
	schema, err := backend.ListAttributes(ctx)
	if err != nil {
		return err
	}
	editable := make(map[string]bool, len(schema))
	for _, a := range schema {
		editable[a.Name] = a.IsEditable
	}

	plan, err := buildUserPlan(changes, editable)
	if err != nil {
		return err
	}

	for _, field := range plan.touched {
		allowed, err := c.mayChangeUserField(ctx, principal, userID, field, editable)
		if err != nil {
			return err
		}
		if !allowed {
			c.logger.Info("modify denied",
				slog.String("user_id", principal.UserID),
				slog.String("target", userID),
				slog.String("field", field))
			return newError(ResultInsufficientAccessRights, "insufficient access rights to change %s", field)
		}
	}

	err = c.server.txManager.WithTx(ctx, func(ctx context.Context) error {
		if !plan.input.IsEmpty() {
			if _, err := backend.UpdateUser(ctx, userID, &plan.input); err != nil {
				return err
			}
		}
		if plan.password != nil {
			return c.server.passwords.RegisterPassword(ctx, userID, *plan.password)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("user modified", slog.String("user_id", principal.UserID), slog.String("target", userID))
	return nil
}

// mayChangeUserField decides whether principal may change field on userID.
func (c *conn) mayChangeUserField(
	ctx context.Context,
	principal *Principal,
	userID, field string,
	editable map[string]bool,
) (bool, error) {
	if principal.IsAdmin() {
		return true, nil
	}
	self := principal.UserID == userID
	if field == passwordField {
		if self {
			return true, nil
		}
		err := c.mayResetPassword(ctx, principal, userID)
		if errors.Is(err, apperrors.ErrForbidden) {
			return false, nil
		}
		return err == nil, err
	}
	if !self {
		return false, nil
	}
	for _, f := range domain.UserSelfEditableFields {
		if f == field {
			return true, nil
		}
	}
	return editable[field], nil
}

// mayResetPassword allows admins, and password managers on non-admin users.
func (c *conn) mayResetPassword(ctx context.Context, principal *Principal, userID string) error {
	switch {
	case principal.IsAdmin():
		return nil
	case principal.IsReadonly():
		return apperrors.ErrForbidden
	case principal.UserID == userID:
		return nil
	case principal.IsPasswordManager():
		groups, err := c.server.backend.GetUserGroups(ctx, userID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g.DisplayName == domain.AdminGroup {
				return apperrors.ErrForbidden
			}
		}
		return nil
	default:
		return apperrors.ErrForbidden
	}
}

// singleValue interprets a change on a single-valued attribute. unset is true when the
// change removes the value.
func singleValue(ch change) (value string, unset bool, err error) {
	switch ch.op {
	case modDelete:
		return "", true, nil
	case modAdd, modReplace:
		switch len(ch.values) {
		case 0:
			if ch.op == modAdd {
				return "", false, newError(ResultProtocolError, "add of %s without values", ch.attr)
			}
			return "", true, nil
		case 1:
			return ch.values[0], false, nil
		default:
			return "", false, newError(ResultUnwillingToPerform, "%s is single-valued", ch.attr)
		}
	default:
		return "", false, newError(ResultUnwillingToPerform, "unsupported modification %d on %s", ch.op, ch.attr)
	}
}

func buildUserPlan(changes []change, schema map[string]bool) (*userPlan, error) {
	plan := &userPlan{input: domain.UpdateUserInput{Attributes: map[string]domain.AttributePatch{}}}
	touch := func(field string) {
		for _, f := range plan.touched {
			if f == field {
				return
			}
		}
		plan.touched = append(plan.touched, field)
	}

	for _, ch := range changes {
		value, unset, err := singleValue(ch)
		if err != nil {
			return nil, err
		}

		attr := strings.ToLower(strings.TrimSpace(ch.attr))
		switch attr {
		case "userpassword":
			if unset || value == "" {
				return nil, newError(ResultUnwillingToPerform, "userPassword cannot be removed")
			}
			plan.password = &value
			touch(passwordField)
		case "mail":
			if unset || value == "" {
				return nil, newError(ResultUnwillingToPerform, "mail cannot be removed")
			}
			plan.input.Email = &value
			touch(domain.AttrEmail)
		case "givenname":
			plan.input.FirstName = &value
			touch(domain.AttrFirstName)
		case "sn":
			plan.input.LastName = &value
			touch(domain.AttrLastName)
		case "displayname", "cn":
			plan.input.DisplayName = &value
			touch(domain.AttrDisplayName)
		case "uid", "objectclass", "entryuuid", "memberof", "createtimestamp", "modifytimestamp":
			return nil, newError(ResultUnwillingToPerform, "%s is read-only", ch.attr)
		default:
			if _, ok := schema[attr]; !ok {
				return nil, newError(ResultUnwillingToPerform, "unknown attribute %s", ch.attr)
			}
			if unset {
				plan.input.Attributes[attr] = domain.UnsetAttribute()
			} else {
				plan.input.Attributes[attr] = domain.SetAttribute(value)
			}
			touch(attr)
		}
	}
	if len(plan.input.Attributes) == 0 {
		plan.input.Attributes = nil
	}
	return plan, nil
}

// modifyGroup changes the members of a group. Only admins may do it; every referenced
// user must exist before the first membership is written.
func (c *conn) modifyGroup(ctx context.Context, principal *Principal, displayName string, changes []change) error {
	if !principal.IsAdmin() {
		return newError(ResultInsufficientAccessRights, "insufficient access rights")
	}

	backend := c.server.backend
	found, err := backend.ListGroups(ctx, domain.Eq(domain.AttrDisplayName, displayName))
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return domain.ErrGroupNotFound
	}
	group := found[0]

	current := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		current[m] = true
	}
	desired := make(map[string]bool, len(group.Members))
	for m := range current {
		desired[m] = true
	}

	for _, ch := range changes {
		switch strings.ToLower(strings.TrimSpace(ch.attr)) {
		case "member", "uniquemember":
		default:
			return newError(ResultUnwillingToPerform, "%s cannot be modified on groups", ch.attr)
		}

		ids := make([]string, 0, len(ch.values))
		for _, v := range ch.values {
			id, ok := c.server.tree.userIDFromDN(v)
			if !ok {
				return newError(ResultInvalidDNSyntax, "%q is not a user DN", v)
			}
			ids = append(ids, id)
		}

		switch ch.op {
		case modAdd:
			for _, id := range ids {
				desired[id] = true
			}
		case modDelete:
			if len(ids) == 0 {
				desired = map[string]bool{}
			}
			for _, id := range ids {
				delete(desired, id)
			}
		case modReplace:
			desired = make(map[string]bool, len(ids))
			for _, id := range ids {
				desired[id] = true
			}
		default:
			return newError(ResultUnwillingToPerform, "unsupported modification %d on %s", ch.op, ch.attr)
		}
	}

	var added, removed []string
	for id := range desired {
		if !current[id] {
			added = append(added, id)
		}
	}
	for id := range current {
		if !desired[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	for _, id := range added {
		if _, err := backend.GetUserDetails(ctx, id); err != nil {
			return err
		}
	}
	err = c.server.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, id := range added {
			if err := backend.AddUserToGroup(ctx, id, group.ID); err != nil {
				return err
			}
		}
		for _, id := range removed {
			if err := backend.RemoveUserFromGroup(ctx, id, group.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("group modified",
		slog.String("user_id", principal.UserID),
		slog.String("group", displayName),
		slog.Int("added", len(added)),
		slog.Int("removed", len(removed)))
	return nil
}
