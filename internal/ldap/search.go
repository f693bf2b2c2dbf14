package ldap

import (
	"context"
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// Search scopes.
const (
	scopeBaseObject   int64 = 0
	scopeSingleLevel  int64 = 1
	scopeWholeSubtree int64 = 2
)

type searchRequest struct {
	baseDN     string
	scope      int64
	sizeLimit  int64
	typesOnly  bool
	filter     *ber.Packet
	attributes []string
}

func parseSearchRequest(op *ber.Packet) (*searchRequest, error) {
	if len(op.Children) != 8 {
		return nil, newError(ResultProtocolError, "malformed search request")
	}

	scope, ok := packetInt(op.Children[1])
	if !ok || scope < scopeBaseObject || scope > scopeWholeSubtree {
		return nil, newError(ResultProtocolError, "invalid search scope")
	}
	sizeLimit, ok := packetInt(op.Children[3])
	if !ok || sizeLimit < 0 {
		return nil, newError(ResultProtocolError, "invalid size limit")
	}
	typesOnly, _ := op.Children[5].Value.(bool)

	req := &searchRequest{
		baseDN:    packetString(op.Children[0]),
		scope:     scope,
		sizeLimit: sizeLimit,
		typesOnly: typesOnly,
		filter:    op.Children[6],
	}
	for _, attr := range op.Children[7].Children {
		req.attributes = append(req.attributes, packetString(attr))
	}
	return req, nil
}

// search collects the entries visible to the connection. Unbound connections may only
// read the root DSE unless anonymous reads are allowed; bound users outside the
// privileged groups only see their own entry and the groups they belong to.
func (c *conn) search(ctx context.Context, req *searchRequest) ([]*entry, error) {
	base, err := parseDN(req.baseDN)
	if err != nil {
		return nil, err
	}
	kind, value := c.server.tree.classify(base)

	principal, bindErr := c.session.Principal()
	if bindErr != nil {
		if !errors.Is(bindErr, ErrNotBound) {
			return nil, newError(ResultOperationsError, "session closed")
		}
		rootDSE := kind == dnRootDSE && req.scope == scopeBaseObject
		if !rootDSE && !c.server.allowAnonymousRead {
			return nil, newError(ResultInsufficientAccessRights, "bind required")
		}
		principal = nil
	}

	s := &searcher{conn: c, req: req, principal: principal, sel: newSelection(req.attributes)}
	t := c.server.tree

	switch kind {
	case dnRootDSE:
		switch req.scope {
		case scopeBaseObject:
			s.static(t.rootDSE())
		case scopeSingleLevel:
			s.static(t.baseEntry())
		default:
			s.static(t.baseEntry())
			err = s.subtree(ctx)
		}
	case dnBase:
		switch req.scope {
		case scopeBaseObject:
			s.static(t.baseEntry())
		case scopeSingleLevel:
			s.static(t.peopleEntry())
			s.static(t.groupsEntry())
		default:
			s.static(t.baseEntry())
			err = s.subtree(ctx)
		}
	case dnPeople:
		if req.scope != scopeSingleLevel {
			s.static(t.peopleEntry())
		}
		if req.scope != scopeBaseObject {
			err = s.users(ctx, nil)
		}
	case dnGroups:
		if req.scope != scopeSingleLevel {
			s.static(t.groupsEntry())
		}
		if req.scope != scopeBaseObject {
			err = s.groups(ctx, nil)
		}
	case dnUser:
		if _, err := c.server.backend.GetUserDetails(ctx, value); err != nil {
			return nil, err
		}
		if req.scope != scopeSingleLevel {
			err = s.users(ctx, domain.Eq(domain.AttrUserID, value))
		}
	case dnGroup:
		found, err := c.server.backend.ListGroups(ctx, domain.Eq(domain.AttrDisplayName, value))
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, domain.ErrGroupNotFound
		}
		if req.scope != scopeSingleLevel {
			if err := s.groups(ctx, domain.Eq(domain.AttrDisplayName, value)); err != nil {
				return nil, err
			}
		}
	default:
		return nil, newError(ResultNoSuchObject, "no such object %q", req.baseDN)
	}
	if err != nil {
		return nil, err
	}
	return s.entries, nil
}

// searcher accumulates the entries of one search.
type searcher struct {
	conn      *conn
	req       *searchRequest
	principal *Principal
	sel       selection
	entries   []*entry
}

func (s *searcher) static(e *entry) {
	if matchEntry(e, s.req.filter) {
		s.entries = append(s.entries, e)
	}
}

func (s *searcher) subtree(ctx context.Context) error {
	t := s.conn.server.tree
	s.static(t.peopleEntry())
	if err := s.users(ctx, nil); err != nil {
		return err
	}
	s.static(t.groupsEntry())
	return s.groups(ctx, nil)
}

func (s *searcher) readsAll() bool {
	return s.principal == nil || s.principal.CanReadAll()
}

func (s *searcher) users(ctx context.Context, scope *domain.Filter) error {
	backend := s.conn.server.backend

	schema, err := backend.ListAttributes(ctx)
	if err != nil {
		return err
	}
	declared := make(map[string]string, len(schema))
	for _, a := range schema {
		declared[a.Name] = a.Name
	}

	translator := &filterTranslator{tree: s.conn.server.tree, entity: entityUser, declared: declared}
	filter, err := translator.translate(s.req.filter)
	if err != nil {
		return err
	}
	parts := []*domain.Filter{filter}
	if scope != nil {
		parts = append(parts, scope)
	}
	if !s.readsAll() {
		parts = append(parts, domain.Eq(domain.AttrUserID, s.principal.UserID))
	}

	users, err := backend.ListUsers(ctx, domain.And(parts...))
	if err != nil {
		return err
	}

	var groupNames map[string]string
	if s.sel.wantsMemberOf() && len(users) > 0 {
		groups, err := backend.ListGroups(ctx, nil)
		if err != nil {
			return err
		}
		groupNames = make(map[string]string, len(groups))
		for _, g := range groups {
			groupNames[g.ID] = g.DisplayName
		}
	}

	for _, user := range users {
		s.entries = append(s.entries, s.conn.server.tree.userEntry(user, groupNames))
	}
	return nil
}

func (s *searcher) groups(ctx context.Context, scope *domain.Filter) error {
	translator := &filterTranslator{tree: s.conn.server.tree, entity: entityGroup}
	filter, err := translator.translate(s.req.filter)
	if err != nil {
		return err
	}
	parts := []*domain.Filter{filter}
	if scope != nil {
		parts = append(parts, scope)
	}
	if !s.readsAll() {
		parts = append(parts, domain.Eq(domain.AttrMember, s.principal.UserID))
	}

	groups, err := s.conn.server.backend.ListGroups(ctx, domain.And(parts...))
	if err != nil {
		return err
	}
	for _, group := range groups {
		s.entries = append(s.entries, s.conn.server.tree.groupEntry(group))
	}
	return nil
}

// handleSearch writes the matching entries followed by SearchResultDone.
func (c *conn) handleSearch(ctx context.Context, msg *message) (ResultCode, error) {
	req, err := parseSearchRequest(msg.op)
	if err != nil {
		return c.respond(msg.id, tagSearchDone, err)
	}

	entries, err := c.search(ctx, req)
	if err != nil {
		return c.respond(msg.id, tagSearchDone, err)
	}

	sel := newSelection(req.attributes)
	for i, e := range entries {
		if req.sizeLimit > 0 && int64(i) >= req.sizeLimit {
			return c.respond(msg.id, tagSearchDone, newError(ResultSizeLimitExceeded, ""))
		}
		if err := c.write(envelope(msg.id, e.packet(sel, req.typesOnly))); err != nil {
			return ResultOther, err
		}
	}
	return c.respond(msg.id, tagSearchDone, nil)
}
