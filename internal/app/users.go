package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-planner/internal/rules"
)

// User is someone holding a staff role. Callers without a row are candidates.
type User struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  rules.Role `json:"role"`
}

func userNotFound(role rules.Role, id string) *Error {
	return &Error{Status: http.StatusNotFound, Code: string(role) + "_not_found", Message: fmt.Sprintf("no %s with id %q", role, id)}
}

// ResolvePrincipal replaces the token's role with the one stored for the caller,
// looked up by id and then by email. Static tokens are operator credentials and
// are returned as they are.
func (a *App) ResolvePrincipal(ctx context.Context, p Principal) (Principal, error) {
	if p.Static {
		return p, nil
	}
	u, err := a.Store.User(ctx, p.ID)
	if errors.Is(err, ErrNotFound) && p.Email != "" {
		u, err = a.Store.UserByEmail(ctx, normalizeEmail(p.Email))
	}
	switch {
	case errors.Is(err, ErrNotFound):
		p.Role = rules.RoleCandidate
		return p, nil
	case err != nil:
		return p, fmt.Errorf("resolve user %s: %w", p.ID, err)
	}
	p.ID, p.Role = u.ID, u.Role
	if p.Email == "" {
		p.Email = u.Email
	}
	return p, nil
}

// ResolveUser runs behind AuthMiddleware and applies ResolvePrincipal.
func (a *App) ResolveUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			c.Next()
			return
		}
		resolved, err := a.ResolvePrincipal(c.Request.Context(), p)
		if err != nil {
			a.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, resolved)
		c.Next()
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func staffRole(role rules.Role) bool {
	return role == rules.RoleInterviewer || role == rules.RoleCoordinator
}

// GrantRole gives the user with email the role, creating the user when needed.
// id names a new user and defaults to the email.
func (a *App) GrantRole(ctx context.Context, p Principal, email, id string, role rules.Role) (User, error) {
	if !p.IsCoordinator() {
		return User{}, forbidden("only coordinators can grant roles")
	}
	if !staffRole(role) {
		return User{}, badRequest("cannot grant role " + string(role))
	}
	email = normalizeEmail(email)
	id = strings.TrimSpace(id)
	if id == "" {
		id = email
	}

	var u User
	err := a.withRetry(ctx, []string{userLockKey(email)}, func(st Store) error {
		existing, err := st.UserByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.ID == p.ID && existing.Role == rules.RoleCoordinator && role != rules.RoleCoordinator {
				return forbidden("cannot give up your own coordinator role")
			}
			u = existing
		case errors.Is(err, ErrNotFound):
			taken, err := st.User(ctx, id)
			if err == nil {
				return &Error{Status: http.StatusConflict, Code: "user_exists", Message: fmt.Sprintf("user %q already exists with email %s", id, taken.Email)}
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			u = User{ID: id, Email: email}
		default:
			return err
		}
		if u.Role == role {
			return nil
		}
		u.Role = role
		return st.SaveUser(ctx, u)
	})
	if err != nil {
		return u, err
	}
	a.Log.Info("role granted", zap.String("user_id", u.ID), zap.String("role", string(role)), zap.String("by", p.ID))
	return u, nil
}

// RevokeRole removes the staff role of user id, who becomes a candidate again.
// Coordinators cannot revoke their own role.
func (a *App) RevokeRole(ctx context.Context, p Principal, id string, role rules.Role) (User, error) {
	if !p.IsCoordinator() {
		return User{}, forbidden("only coordinators can revoke roles")
	}
	if role == rules.RoleCoordinator && id == p.ID {
		return User{}, forbidden("cannot revoke your own coordinator role")
	}
	u, err := a.Store.User(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && u.Role != role) {
		return u, userNotFound(role, id)
	}
	if err != nil {
		return u, err
	}
	err = a.withRetry(ctx, []string{userLockKey(u.Email)}, func(st Store) error {
		cur, err := st.User(ctx, id)
		if errors.Is(err, ErrNotFound) || (err == nil && cur.Role != role) {
			return userNotFound(role, id)
		}
		if err != nil {
			return err
		}
		return st.DeleteUser(ctx, id)
	})
	if err != nil {
		return u, err
	}
	a.Log.Info("role revoked", zap.String("user_id", id), zap.String("role", string(role)), zap.String("by", p.ID))
	return u, nil
}

func (a *App) UsersWithRole(ctx context.Context, role rules.Role) ([]User, error) {
	users, err := a.Store.UsersWithRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// ensureInterviewer checks that interviewerID names an interviewer when p acts
// on someone else's behalf.
func (a *App) ensureInterviewer(ctx context.Context, st Store, p Principal, interviewerID string) error {
	if p.Role == rules.RoleInterviewer && p.ID == interviewerID {
		return nil
	}
	u, err := st.User(ctx, interviewerID)
	if errors.Is(err, ErrNotFound) || (err == nil && u.Role != rules.RoleInterviewer) {
		return userNotFound(rules.RoleInterviewer, interviewerID)
	}
	return err
}
