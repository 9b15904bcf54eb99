// Package policy decides who may perform which library action.
//
// Every rule returns a Decision rather than a bool so the caller can surface
// the reason to the member. Rules only look at the actor and the identifiers
// involved; availability and limits are checked by the circulation service
// against the store.
package policy

import (
	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/entities"
)

// Actor is the authenticated user performing an action.
type Actor struct {
	UserID uint
	Role   entities.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == entities.UserRoleAdmin
}

// Decision is either Allowed or Forbidden with a reason.
type Decision struct {
	forbidden bool
	reason    string
}

func Allowed() Decision {
	return Decision{}
}

func Forbidden(reason string) Decision {
	return Decision{forbidden: true, reason: reason}
}

func (d Decision) IsAllowed() bool {
	return !d.forbidden
}

// Reason is empty for allowed decisions.
func (d Decision) Reason() string {
	return d.reason
}

// Err converts a forbidden decision to an apperr Forbidden error, or nil.
func (d Decision) Err() error {
	if !d.forbidden {
		return nil
	}
	return apperr.Forbidden(d.reason)
}

// Channel distinguishes a member borrowing at the kiosk from a librarian
// checking a book out on someone's behalf.
type Channel int

const (
	SelfService Channel = iota
	Assisted
)

func AuthorizeBorrow(actor Actor, borrowerID uint, channel Channel) Decision {
	switch {
	case channel == Assisted && !actor.IsAdmin():
		return Forbidden("only admins can check books out for members")
	case actor.IsAdmin():
		return Allowed()
	case borrowerID != actor.UserID:
		return Forbidden("you can only borrow books for yourself")
	}
	return Allowed()
}

func AuthorizeReturn(actor Actor) Decision {
	if !actor.IsAdmin() {
		return Forbidden("only admins can receive returned books")
	}
	return Allowed()
}

// AuthorizePaymentMethod is checked before the fine is looked up: cash is
// taken in person at the desk.
func AuthorizePaymentMethod(actor Actor, method entities.PaymentMethod) Decision {
	if method == entities.PaymentMethodCash && !actor.IsAdmin() {
		return Forbidden("only admins can accept fines in cash in person at the library")
	}
	return Allowed()
}

func AuthorizeFinePayment(actor Actor, method entities.PaymentMethod, borrowerID uint) Decision {
	if d := AuthorizePaymentMethod(actor, method); !d.IsAllowed() {
		return d
	}
	if actor.IsAdmin() || actor.UserID == borrowerID {
		return Allowed()
	}
	return Forbidden("you can only pay your own fines")
}

// AuthorizeLedgerView gates reading another member's borrows and fines.
func AuthorizeLedgerView(actor Actor, ownerID uint) Decision {
	if actor.IsAdmin() || actor.UserID == ownerID {
		return Allowed()
	}
	return Forbidden("you can only view your own records")
}

func AuthorizeCatalogChange(actor Actor) Decision {
	if !actor.IsAdmin() {
		return Forbidden("only admins can change the catalog")
	}
	return Allowed()
}

func AuthorizeAccountAdmin(actor Actor) Decision {
	if !actor.IsAdmin() {
		return Forbidden("only admins can manage accounts")
	}
	return Allowed()
}
