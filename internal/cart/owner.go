package cart

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

// Owner identifies whose cart is being addressed. An authenticated user always
// wins over the guest session id.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

// ForUser returns an owner scoped to the given user.
func ForUser(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// ForSession returns an owner scoped to a guest cart session.
func ForSession(sessionID string) Owner {
	return Owner{SessionID: strings.TrimSpace(sessionID)}
}

// IsGuest reports whether the cart belongs to an anonymous session.
func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

// Validate ensures the owner can address a cart.
func (o Owner) Validate() error {
	if o.UserID != nil && *o.UserID != uuid.Nil {
		return nil
	}
	if strings.TrimSpace(o.SessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session is required").
			WithDetails(map[string]any{"header": "X-Cart-Session"})
	}
	return nil
}

// String is used as a log field.
func (o Owner) String() string {
	if o.UserID != nil {
		return "user:" + o.UserID.String()
	}
	return "session:" + o.SessionID
}

func (o Owner) scope(db *gorm.DB) *gorm.DB {
	if o.UserID != nil {
		return db.Where("cart_lines.user_id = ?", *o.UserID)
	}
	return db.Where("cart_lines.session_id = ? AND cart_lines.user_id IS NULL", o.SessionID)
}

func (o Owner) assign(line *models.CartLine) {
	if o.UserID != nil {
		id := *o.UserID
		line.UserID = &id
		line.SessionID = nil
		return
	}
	session := o.SessionID
	line.SessionID = &session
	line.UserID = nil
}
