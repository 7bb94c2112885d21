package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
)

// fakeStore is an in-memory stand-in for store.Store. InTx clones the whole
// state, runs the callback against the clone, and swaps it in only on
// success, mirroring commit/rollback. The mutex is held for the duration of
// a transaction, which emulates the row locks serializing checkouts.
type fakeStore struct {
	mu  sync.Mutex
	st  *fakeState
	seq int64
}

type fakeState struct {
	users      map[int64]*models.User
	categories map[int64]*models.Category
	products   map[int64]*models.Product
	carts      map[int64]*models.Cart
	items      map[int64]*models.CartItem
	orders     map[int64]*models.Order
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{st: &fakeState{
		users:      map[int64]*models.User{},
		categories: map[int64]*models.Category{},
		products:   map[int64]*models.Product{},
		carts:      map[int64]*models.Cart{},
		items:      map[int64]*models.CartItem{},
		orders:     map[int64]*models.Order{},
	}}
}

func (s *fakeState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		users:      make(map[int64]*models.User, len(s.users)),
		categories: make(map[int64]*models.Category, len(s.categories)),
		products:   make(map[int64]*models.Product, len(s.products)),
		carts:      make(map[int64]*models.Cart, len(s.carts)),
		items:      make(map[int64]*models.CartItem, len(s.items)),
		orders:     make(map[int64]*models.Order, len(s.orders)),
		nextID:     s.nextID,
	}
	for k, v := range s.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range s.categories {
		cp := *v
		c.categories[k] = &cp
	}
	for k, v := range s.products {
		cp := *v
		c.products[k] = &cp
	}
	for k, v := range s.carts {
		cp := *v
		c.carts[k] = &cp
	}
	for k, v := range s.items {
		cp := *v
		c.items[k] = &cp
	}
	for k, v := range s.orders {
		cp := *v
		c.orders[k] = &cp
	}
	return c
}

// tick produces strictly increasing timestamps for created_at ordering
func (s *fakeStore) tick() time.Time {
	s.seq++
	return time.Unix(0, s.seq*int64(time.Millisecond))
}

// --- seeding helpers ---

func (s *fakeStore) addUser(email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.st.id(), Email: email, PasswordHash: "x", Role: models.RoleUser}
	s.st.users[u.ID] = u
	return u
}

func (s *fakeStore) addCategory(name string) *models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Category{ID: s.st.id(), Name: name}
	s.st.categories[c.ID] = c
	return c
}

func (s *fakeStore) addProduct(name string, price float64, categoryID int64, units int) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Product{
		ID: s.st.id(), Name: name, Price: price, CategoryID: categoryID,
		TotalUnits: units, RemainingUnits: units,
	}
	s.st.products[p.ID] = p
	return p
}

func (s *fakeStore) addCart(userID int64) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Cart{ID: s.st.id(), UserID: userID, CreatedAt: s.tick()}
	s.st.carts[c.ID] = c
	return c
}

func (s *fakeStore) addItem(cartID, productID int64, qty int) *models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &models.CartItem{ID: s.st.id(), CartID: cartID, ProductID: productID, Quantity: qty}
	s.st.items[it.ID] = it
	return it
}

func (s *fakeStore) product(id int64) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.products[id]
}

func (s *fakeStore) cart(id int64) models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.carts[id]
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *fakeStore) cartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts)
}

// checkStockInvariant reports any product violating
// 0 <= remaining_units <= total_units
func (s *fakeStore) checkStockInvariant() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.products {
		if p.RemainingUnits < 0 || p.RemainingUnits > p.TotalUnits {
			return false
		}
	}
	return true
}

// --- UserStore ---

func (s *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.st.id()
	cp := *user
	s.st.users[user.ID] = &cp
	return nil
}

func (s *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- CategoryStore ---

func (s *fakeStore) CreateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	category.ID = s.st.id()
	cp := *category
	s.st.categories[category.ID] = &cp
	return nil
}

func (s *fakeStore) GetCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, 0, len(s.st.categories))
	for _, c := range s.st.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.st.categories {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *category
	s.st.categories[category.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.categories, id)
	return nil
}

// --- ProductStore ---

func (s *fakeStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = s.st.id()
	cp := *product
	s.st.products[product.ID] = &cp
	return nil
}

func (s *fakeStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]bool{}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.st.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

// --- CartStore ---

func (s *fakeStore) CreateCart(ctx context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart.ID = s.st.id()
	cart.CreatedAt = s.tick()
	cp := *cart
	s.st.carts[cart.ID] = &cp
	return nil
}

func (s *fakeStore) GetCartByID(ctx context.Context, id int64) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.carts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.st.id()
	cp := *item
	s.st.items[item.ID] = &cp
	return nil
}

func (s *fakeStore) GetActiveCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Cart
	for _, c := range s.st.carts {
		if c.UserID != userID || c.IsCheckedOut {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeStore) GetCartsByUserID(ctx context.Context, userID int64) ([]models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Cart
	for _, c := range s.st.carts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) GetCartItemDetails(ctx context.Context, cartID int64) ([]models.CartItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.cartItemDetails(cartID), nil
}

func (s *fakeState) cartItemDetails(cartID int64) []models.CartItemDetail {
	var lines []*models.CartItem
	for _, it := range s.items {
		if it.CartID == cartID {
			lines = append(lines, it)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })

	out := make([]models.CartItemDetail, 0, len(lines))
	for _, it := range lines {
		d := models.CartItemDetail{ProductID: it.ProductID, Quantity: it.Quantity}
		if p, ok := s.products[it.ProductID]; ok {
			d.Name = p.Name
			d.Price = p.Price
		}
		out = append(out, d)
	}
	return out
}

// --- OrderQueryStore ---

func (s *fakeStore) GetOrders(ctx context.Context, status string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.st.orders {
		if status == "" || o.OrderStatus == status {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderTime.Equal(out[j].OrderTime) {
			return out[i].OrderTime.After(out[j].OrderTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *fakeStore) GetLatestOrderByStatus(ctx context.Context, status string) (*models.Order, error) {
	orders, _ := s.GetOrders(ctx, status)
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (s *fakeStore) GetLatestOrderByUserID(ctx context.Context, userID int64) (*models.Order, error) {
	orders, _ := s.GetOrders(ctx, "")
	for i := range orders {
		if orders[i].UserID == userID {
			return &orders[i], nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, _ := s.GetOrders(ctx, "")
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- CheckoutStore ---

func (s *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InTx(ctx context.Context, fn func(tx store.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&fakeTxn{st: work, store: s}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type fakeTxn struct {
	st    *fakeState
	store *fakeStore
}

func (t *fakeTxn) GetCartForUpdate(ctx context.Context, cartID int64) (*models.Cart, error) {
	if c, ok := t.st.carts[cartID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (t *fakeTxn) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, it := range t.st.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTxn) GetProductForUpdate(ctx context.Context, productID int64) (*models.Product, error) {
	if p, ok := t.st.products[productID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (t *fakeTxn) ReserveStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	p := t.st.products[productID]
	if p.RemainingUnits < qty {
		return p.RemainingUnits, false, nil
	}
	p.RemainingUnits -= qty
	return p.RemainingUnits, true, nil
}

func (t *fakeTxn) CreateCart(ctx context.Context, cart *models.Cart) error {
	cart.ID = t.st.id()
	cart.CreatedAt = t.store.tick()
	cp := *cart
	t.st.carts[cart.ID] = &cp
	return nil
}

func (t *fakeTxn) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	item.ID = t.st.id()
	cp := *item
	t.st.items[item.ID] = &cp
	return nil
}

func (t *fakeTxn) MarkCartCheckedOut(ctx context.Context, cartID int64) error {
	t.st.carts[cartID].IsCheckedOut = true
	return nil
}

func (t *fakeTxn) CreateOrder(ctx context.Context, order *models.Order) error {
	order.ID = t.st.id()
	order.OrderTime = t.store.tick()
	cp := *order
	t.st.orders[order.ID] = &cp
	return nil
}

// capturingPublisher records published events
type capturingPublisher struct {
	mu       sync.Mutex
	placed   []*models.OrderPlacedEvent
	depleted []*models.StockDepletedEvent
}

func (p *capturingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *capturingPublisher) PublishStockDepleted(ctx context.Context, event *models.StockDepletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.depleted = append(p.depleted, event)
	return nil
}
