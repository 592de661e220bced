package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence contract for user order documents.
// LoadOrders returns (nil, nil) when the user has no document yet.
// SaveOrders is a whole-document replace of all three containers.
type OrderStore interface {
	LoadOrders(email string) (*UserOrders, error)
	SaveOrders(email string, uo *UserOrders) error
	UserEmails() ([]string, error)
}

// Resolver answers whether an email belongs to a known user. Identity itself
// (passwords, profiles) lives behind the account facade.
type Resolver interface {
	Exists(email string) (bool, error)
}

// Manager owns the order lifecycle: active buy/sell sets, the soft-delete
// trash, and permanent deletion. Every operation resolves the user, then
// performs a single read-modify-write of that user's document under the
// user's lock.
type Manager struct {
	store OrderStore
	users Resolver
	locks *keyedMutex
	log   *zap.SugaredLogger
}

func NewManager(store OrderStore, users Resolver, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store: store,
		users: users,
		locks: newKeyedMutex(),
		log:   log,
	}
}

// resolve checks the identifying fields and that the user exists.
func (m *Manager) resolve(email, orderID string) error {
	if email == "" {
		return fmt.Errorf("%w: email", ErrValidation)
	}
	if orderID == "" {
		return fmt.Errorf("%w: orderId", ErrValidation)
	}
	ok, err := m.users.Exists(email)
	if err != nil {
		return fmt.Errorf("resolve user %s: %w", email, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return nil
}

// load fetches the user's document, normalizing a missing one to empty.
func (m *Manager) load(email string) (*UserOrders, error) {
	uo, err := m.store.LoadOrders(email)
	if err != nil {
		return nil, fmt.Errorf("load orders for %s: %w", email, err)
	}
	if uo == nil {
		uo = NewUserOrders()
	}
	uo.Normalize()
	return uo, nil
}

// MoveToTrash removes orderID from whichever active side holds it, stamps the
// originating side, and appends it to the trash. Removal is stable: remaining
// orders keep their relative order. Returns the updated trash count.
//
// Calling this twice for the same id yields success then ErrOrderNotFound;
// the order is never duplicated in the trash.
func (m *Manager) MoveToTrash(email, orderID string) (int, error) {
	if err := m.resolve(email, orderID); err != nil {
		return 0, err
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return 0, err
	}

	var trashed Order
	if i := findOrder(uo.BuyOrders, orderID); i >= 0 {
		trashed = uo.BuyOrders[i]
		trashed.OriginatingSide = SideBuy
		uo.BuyOrders = removeAt(uo.BuyOrders, i)
	} else if i := findOrder(uo.SellOrders, orderID); i >= 0 {
		trashed = uo.SellOrders[i]
		trashed.OriginatingSide = SideSell
		uo.SellOrders = removeAt(uo.SellOrders, i)
	} else {
		return 0, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	uo.Trash = append(uo.Trash, trashed)

	if err := m.store.SaveOrders(email, uo); err != nil {
		return 0, fmt.Errorf("save orders for %s: %w", email, err)
	}

	m.log.Infow("order_trashed", "email", email, "order_id", orderID,
		"from", trashed.OriginatingSide, "trash_count", len(uo.Trash))
	return len(uo.Trash), nil
}

// RestoreFromTrash moves orderID from the trash back to its originating side
// and clears the originating-side tag. An absent or unrecognized tag falls
// back to the buy side; that is the documented legacy policy, logged loudly
// rather than failed, since the order would otherwise be stuck in the trash.
func (m *Manager) RestoreFromTrash(email, orderID string) (int, error) {
	if err := m.resolve(email, orderID); err != nil {
		return 0, err
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return 0, err
	}

	i := findOrder(uo.Trash, orderID)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	restored := uo.Trash[i]
	origin := restored.OriginatingSide
	restored.OriginatingSide = ""
	uo.Trash = removeAt(uo.Trash, i)

	switch origin {
	case SideSell:
		uo.SellOrders = append(uo.SellOrders, restored)
	case SideBuy:
		uo.BuyOrders = append(uo.BuyOrders, restored)
	default:
		m.log.Warnw("restore_unknown_origin", "email", email,
			"order_id", orderID, "origin", string(origin), "fallback", SideBuy)
		uo.BuyOrders = append(uo.BuyOrders, restored)
	}

	if err := m.store.SaveOrders(email, uo); err != nil {
		return 0, fmt.Errorf("save orders for %s: %w", email, err)
	}

	m.log.Infow("order_restored", "email", email, "order_id", orderID,
		"trash_count", len(uo.Trash))
	return len(uo.Trash), nil
}

// PurgeFromTrash permanently deletes orderID from the trash. There is no
// recovery after this.
func (m *Manager) PurgeFromTrash(email, orderID string) (int, error) {
	if err := m.resolve(email, orderID); err != nil {
		return 0, err
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return 0, err
	}

	i := findOrder(uo.Trash, orderID)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	uo.Trash = removeAt(uo.Trash, i)

	if err := m.store.SaveOrders(email, uo); err != nil {
		return 0, fmt.Errorf("save orders for %s: %w", email, err)
	}

	m.log.Infow("order_purged", "email", email, "order_id", orderID,
		"trash_count", len(uo.Trash))
	return len(uo.Trash), nil
}

// ListTrash returns the trash in insertion order. A user with no document
// gets an empty slice.
func (m *Manager) ListTrash(email string) ([]Order, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email", ErrValidation)
	}
	ok, err := m.users.Exists(email)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", email, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return nil, err
	}
	out := make([]Order, len(uo.Trash))
	copy(out, uo.Trash)
	return out, nil
}

// ActiveOrders returns copies of both active sides.
func (m *Manager) ActiveOrders(email string) (buy, sell []Order, err error) {
	if email == "" {
		return nil, nil, fmt.Errorf("%w: email", ErrValidation)
	}
	ok, err := m.users.Exists(email)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve user %s: %w", email, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return nil, nil, err
	}
	buy = make([]Order, len(uo.BuyOrders))
	copy(buy, uo.BuyOrders)
	sell = make([]Order, len(uo.SellOrders))
	copy(sell, uo.SellOrders)
	return buy, sell, nil
}

// PlaceOrder appends a new order to the given active side. A missing ID gets
// a fresh uuid; CreatedAt is stamped if unset. Returns the stored order.
func (m *Manager) PlaceOrder(email string, side Side, o Order) (Order, error) {
	if email == "" {
		return Order{}, fmt.Errorf("%w: email", ErrValidation)
	}
	if o.Symbol == "" {
		return Order{}, fmt.Errorf("%w: symbol", ErrValidation)
	}
	if side != SideBuy && side != SideSell {
		return Order{}, fmt.Errorf("%w: side", ErrValidation)
	}
	ok, err := m.users.Exists(email)
	if err != nil {
		return Order{}, fmt.Errorf("resolve user %s: %w", email, err)
	}
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = time.Now().UnixMilli()
	}
	if o.Kind == "" {
		o.Kind = KindLimit
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	o.OriginatingSide = "" // only ever set while trashed

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.load(email)
	if err != nil {
		return Order{}, err
	}
	if uo.Contains(o.ID) {
		return Order{}, fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
	}

	if side == SideSell {
		uo.SellOrders = append(uo.SellOrders, o)
	} else {
		uo.BuyOrders = append(uo.BuyOrders, o)
	}

	if err := m.store.SaveOrders(email, uo); err != nil {
		return Order{}, fmt.Errorf("save orders for %s: %w", email, err)
	}

	m.log.Infow("order_placed", "email", email, "order_id", o.ID,
		"side", side, "kind", o.Kind, "symbol", o.Symbol)
	return o, nil
}
