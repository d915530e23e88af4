package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetnav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	orders   map[string]model.OrderOut // id -> order
	orderTen map[string][]string       // tenant -> order ids
	byRef    map[string]string         // tenant+ref -> order id
	graphs   map[string]model.GraphOut // id -> graph
	graphTen map[string][]string       // tenant -> graph ids
	plans    map[string]model.Plan     // id -> plan
	planTen  map[string][]string       // tenant -> plan ids
	subs     map[string][]model.Subscription
	// Webhooks queue state
	deliveries map[string]*memDelivery
	planMx     map[string][]model.PlanMetrics // tenant+plan -> items
}

func NewMemory() *Memory {
	return &Memory{
		orders:     map[string]model.OrderOut{},
		orderTen:   map[string][]string{},
		byRef:      map[string]string{},
		graphs:     map[string]model.GraphOut{},
		graphTen:   map[string][]string{},
		plans:      map[string]model.Plan{},
		planTen:    map[string][]string{},
		subs:       map[string][]model.Subscription{},
		deliveries: map[string]*memDelivery{},
		planMx:     map[string][]model.PlanMetrics{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, skipped := 0, 0
	for _, o := range orders {
		if o.ExternalRef != "" {
			if _, dup := m.byRef[tenantID+"/"+o.ExternalRef]; dup {
				skipped++
				continue
			}
		}
		id := uuid.New().String()
		m.orders[id] = model.OrderOut{
			ID:          id,
			TenantID:    tenantID,
			ExternalRef: o.ExternalRef,
			Destination: o.Destination,
			WeightTons:  o.WeightTons,
			Priority:    o.Priority,
			Deadline:    o.Deadline,
			Status:      "pending",
		}
		m.orderTen[tenantID] = append(m.orderTen[tenantID], id)
		if o.ExternalRef != "" {
			m.byRef[tenantID+"/"+o.ExternalRef] = id
		}
		created++
	}
	return "imp_mem", created, skipped, nil
}

func (m *Memory) ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.OrderOut, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.orderTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.OrderOut{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		o := m.orders[ids[i]]
		if status == "" || o.Status == status {
			out = append(out, o)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, tenantID string, ids []string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || o.TenantID != tenantID {
			continue
		}
		o.Status = status
		m.orders[id] = o
	}
	return nil
}

func (m *Memory) SaveGraph(ctx context.Context, tenantID string, in model.GraphIn) (model.GraphOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := model.GraphOut{ID: uuid.New().String(), TenantID: tenantID, GraphIn: in}
	m.graphs[g.ID] = g
	m.graphTen[tenantID] = append(m.graphTen[tenantID], g.ID)
	return g, nil
}

func (m *Memory) GetGraph(ctx context.Context, tenantID, id string) (model.GraphOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[id]
	if !ok || g.TenantID != tenantID {
		return model.GraphOut{}, ErrNotFound
	}
	return g, nil
}

func (m *Memory) ListGraphs(ctx context.Context, tenantID, cursor string, limit int) ([]model.GraphOut, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.graphTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]model.GraphOut, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, m.graphs[id])
	}
	next := ""
	if end < len(ids) {
		next = ids[end-1]
	}
	return out, next, nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt == "" {
		plan.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.plans[plan.ID] = plan
	m.planTen[plan.TenantID] = append(m.planTen[plan.TenantID], plan.ID)
	return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok || p.TenantID != tenantID {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.planTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]model.Plan, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, m.plans[id])
	}
	next := ""
	if end < len(ids) {
		next = ids[end-1]
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	for i := range arr {
		if arr[i].ID == id {
			m.subs[tenantID] = append(arr[:i], arr[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			TenantID:       tenantID,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        payload,
			Status:         "pending",
		},
		NextAttemptAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	due := []*memDelivery{}
	for _, d := range m.deliveries {
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]WebhookDelivery, len(due))
	for i, d := range due {
		out[i] = d.WebhookDelivery
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = "retry"
	d.Attempts++
	d.LastError = lastError
	if nextAttemptAt == nil {
		t := time.Now().Add(1 * time.Minute)
		nextAttemptAt = &t
	}
	d.NextAttemptAt = *nextAttemptAt
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planID string, pm model.PlanMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "/" + planID
	m.planMx[key] = append(m.planMx[key], pm)
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planID string) ([]model.PlanMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PlanMetrics(nil), m.planMx[tenantID+"/"+planID]...), nil
}
