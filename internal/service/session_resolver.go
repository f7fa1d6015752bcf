package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

// Messages returned for submissions whose candidate/session linkage does not resolve.
const (
	MsgSessionMismatch   = "PSCID and Visit Label do not match a candidate session"
	MsgCandidateMismatch = "PSCID does not match a candidate session"
	MsgVisitWithoutPSCID = "A Visit Label must be accompanied by a PSCID"
)

// ResolveInput is the submitted linkage plus what the issue is currently linked to.
type ResolveInput struct {
	PSCID      *string
	VisitLabel *string
	Prior      domain.SessionLinkage
}

// Resolution is the outcome of a linkage check. An invalid resolution is a
// normal result, not an error.
type Resolution struct {
	Valid          bool
	InvalidMessage string
	CandID         *int64
	SessionID      *int64
}

// SessionResolver validates PSCID/visit-label submissions against the
// candidate and session directories.
type SessionResolver struct {
	directory repository.DirectoryRepository
}

// NewSessionResolver constructs resolver.
func NewSessionResolver(directory repository.DirectoryRepository) *SessionResolver {
	return &SessionResolver{directory: directory}
}

// Resolve applies, in order: a full (PSCID, visit label) pair built from the
// submission and the prior linkage, a PSCID alone, a visit label alone, nothing.
// The error is non-nil only when a directory lookup fails.
func (r *SessionResolver) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	newPSCID := trimmed(in.PSCID)
	newVisit := trimmed(in.VisitLabel)
	pscid := firstNonEmpty(newPSCID, trimmed(in.Prior.PSCID))
	visit := firstNonEmpty(newVisit, trimmed(in.Prior.VisitLabel))

	switch {
	case pscid != "" && visit != "" && (newPSCID != "" || newVisit != ""):
		sessionID, candID, err := r.directory.FindSession(ctx, pscid, visit)
		if errors.Is(err, domain.ErrNotFound) {
			return invalidResolution(MsgSessionMismatch), nil
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve session %s/%s: %w", pscid, visit, err)
		}
		res := Resolution{Valid: true, SessionID: &sessionID}
		if newPSCID != "" {
			res.CandID = &candID
		}
		return res, nil

	case newPSCID != "":
		candID, err := r.directory.CandidateIDByPSCID(ctx, newPSCID)
		if errors.Is(err, domain.ErrNotFound) {
			return invalidResolution(MsgCandidateMismatch), nil
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve candidate %s: %w", newPSCID, err)
		}
		return Resolution{Valid: true, CandID: &candID}, nil

	case newVisit != "":
		return invalidResolution(MsgVisitWithoutPSCID), nil

	default:
		return Resolution{Valid: true}, nil
	}
}

func invalidResolution(msg string) Resolution {
	return Resolution{Valid: false, InvalidMessage: msg}
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
