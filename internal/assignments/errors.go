package assignments

import pkgerrors "github.com/foodway/foodway-backend/pkg/errors"

var (
	ErrNotFound       = pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	ErrAlreadyClaimed = pkgerrors.New(pkgerrors.CodeAlreadyClaimed, "assignment already claimed")
	ErrNotAvailable   = pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is no longer available")
	ErrNotClaimed     = pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is not in claimed state")
	ErrDuplicate      = pkgerrors.New(pkgerrors.CodeConflict, "assignment already exists for sub-order")
)

func invalidOrder(msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidOrder, msg)
}
