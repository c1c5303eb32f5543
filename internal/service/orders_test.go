package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

func TestSubmitIntent_FansOutToMatchingProviders(t *testing.T) {
	f := newFixture(t)
	secondOwner, second := f.addProvider(t, "Second", deepCleaning("120"), true, true)
	f.addProvider(t, "Offline", deepCleaning("90"), false, true)

	orders := f.submit(t)
	require.Len(t, orders, 2)

	byProvider := map[string]model.Order{}
	for _, o := range orders {
		byProvider[o.ProviderID] = o
		assert.Equal(t, orders[0].OrderID, o.OrderID)
		assert.Equal(t, orders[0].CheckoutID, o.CheckoutID)
		assert.Equal(t, model.OrderStatusPending, o.Status)
		assert.Equal(t, model.AssignmentUnassigned, o.Assignment.Status)
		assert.Equal(t, f.customer.AccountID, o.CustomerID)
		assert.True(t, o.ServiceCharges.RatePerDistanceUnit.Equal(decimal.RequireFromString("12.5")))
		assert.True(t, o.ServiceCharges.Distance.Equal(decimal.RequireFromString("1.11")), "distance %s", o.ServiceCharges.Distance)
	}
	assert.NotEmpty(t, orders[0].CheckoutID)

	assert.True(t, byProvider[f.provider.ID].Cost.Equal(decimal.NewFromInt(100)))
	assert.True(t, byProvider[second.ID].Cost.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, secondOwner.AccountID, byProvider[second.ID].ProviderOwnerID)

	assert.NotEmpty(t, f.notifier.forUser(f.owner.AccountID))
	assert.NotEmpty(t, f.notifier.forUser(secondOwner.AccountID))
	assert.NotEmpty(t, f.notifier.forUser(f.customer.AccountID))
}

func TestSubmitIntent_KeepsCustomerGroupingIDs(t *testing.T) {
	f := newFixture(t)

	orders, err := f.svc.SubmitIntent(context.Background(), f.customer, Intent{
		OrderID: "grp-1", CheckoutID: "chk-1", Category: "cleaning", SubCategory: "deep",
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "grp-1", orders[0].OrderID)
	assert.Equal(t, "chk-1", orders[0].CheckoutID)
	assert.True(t, orders[0].ServiceCharges.Distance.IsZero())
}

func TestSubmitIntent_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitIntent(ctx, f.customer, Intent{Category: "cleaning", SubCategory: "windows"})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.SubmitIntent(ctx, f.owner, Intent{Category: "cleaning", SubCategory: "deep"})
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.svc.SubmitIntent(ctx, f.customer, Intent{SubCategory: "deep"})
	requireKind(t, err, apperr.KindInvalidArgument)
}

func TestRespondToOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strangerOwner, _ := f.addProvider(t, "Stranger", nil, true, true)

	orders := f.submit(t)
	id := orders[0].ID

	_, err := f.svc.RespondToOrder(ctx, strangerOwner, id, true)
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.svc.RespondToOrder(ctx, f.owner, "missing", true)
	requireKind(t, err, apperr.KindNotFound)

	o, err := f.svc.RespondToOrder(ctx, f.owner, id, true)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAccepted, o.Status)

	_, err = f.svc.RespondToOrder(ctx, f.owner, id, true)
	requireKind(t, err, apperr.KindConflict)

	_, err = f.svc.RespondToOrder(ctx, f.owner, id, false)
	requireKind(t, err, apperr.KindConflict)

	msgs := f.notifier.forUser(f.customer.AccountID)
	assert.Equal(t, customerRequestAcceptedMessage("Sparkle"), msgs[len(msgs)-1].Message)
}

func TestRespondToOrder_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t)[0].ID

	o, err := f.svc.RespondToOrder(ctx, f.owner, id, false)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRejected, o.Status)

	_, err = f.svc.RespondToOrder(ctx, f.owner, id, true)
	requireKind(t, err, apperr.KindConflict)
}

func TestRespondToOrder_AssignedOrderIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	id := f.assignedOrder(t)

	_, err := f.svc.RespondToOrder(context.Background(), f.owner, id, true)
	requireKind(t, err, apperr.KindInvalidStateTransition)
}

func TestAssignWorkers_PerItemResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherOwner, _ := f.addProvider(t, "Other", nil, true, true)
	foreign, err := f.svc.CreateWorker(ctx, otherOwner, WorkerInput{Name: "Foreign", Phone: "03009999999"})
	require.NoError(t, err)

	accepted := f.acceptedOrder(t)
	pending := f.submit(t)[0].ID
	foreignTarget := f.acceptedOrder(t)

	res, err := f.svc.AssignWorkers(ctx, f.owner, map[string]string{
		accepted:      f.worker.AccountID,
		pending:       f.worker.AccountID,
		"missing":     f.worker.AccountID,
		foreignTarget: foreign.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{accepted}, res.Succeeded)

	kinds := map[string]apperr.Kind{}
	for _, fail := range res.Failed {
		kinds[fail.ID] = fail.Kind
	}
	assert.Equal(t, map[string]apperr.Kind{
		pending:       apperr.KindInvalidStateTransition,
		"missing":     apperr.KindNotFound,
		foreignTarget: apperr.KindInvalidArgument,
	}, kinds)

	o, err := f.svc.GetOrder(ctx, f.owner, accepted)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAssigned, o.Status)
	assert.Equal(t, f.worker.AccountID, o.AssignedWorkerID())
	require.NotNil(t, o.Assignment.AssignedAt)
	assert.True(t, o.Assignment.AssignedAt.Equal(f.now))

	assert.Equal(t, model.OrderStatusAccepted, f.orderStatus(t, foreignTarget))
}

func TestAssignWorkers_RequiresAssignments(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AssignWorkers(context.Background(), f.owner, nil)
	requireKind(t, err, apperr.KindInvalidArgument)

	_, err = f.svc.AssignWorkers(context.Background(), f.worker, map[string]string{"a": "b"})
	requireKind(t, err, apperr.KindForbidden)
}

func TestProgressAndComplete_ReferenceCountsBusyWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.assignedOrder(t)
	second := f.assignedOrder(t)

	res, err := f.svc.ProgressOrders(ctx, f.worker, []string{first, second, first})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, res.Succeeded)
	assert.Empty(t, res.Failed)

	w, err := f.svc.GetWorker(ctx, f.worker)
	require.NoError(t, err)
	assert.True(t, w.IsBusy)
	assert.Equal(t, 2, w.OrderCount)
	assert.Equal(t, 2, w.ActiveOrders)

	res, err = f.svc.CompleteOrders(ctx, f.worker, []string{first})
	require.NoError(t, err)
	assert.Equal(t, []string{first}, res.Succeeded)

	w, err = f.svc.GetWorker(ctx, f.worker)
	require.NoError(t, err)
	assert.True(t, w.IsBusy, "worker still has an order in progress")

	_, err = f.svc.CompleteOrders(ctx, f.worker, []string{second})
	require.NoError(t, err)

	w, err = f.svc.GetWorker(ctx, f.worker)
	require.NoError(t, err)
	assert.False(t, w.IsBusy)
	assert.Equal(t, 2, w.OrderCount)
	assert.Equal(t, 0, w.ActiveOrders)
}

func TestProgressOrders_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.CreateWorker(ctx, f.owner, WorkerInput{Name: "Other", Phone: "03007777777"})
	require.NoError(t, err)
	otherID := model.Identity{AccountID: other.ID, Role: model.RoleWorker}

	assigned := f.assignedOrder(t)
	accepted := f.acceptedOrder(t)

	res, err := f.svc.ProgressOrders(ctx, otherID, []string{assigned, accepted})
	require.NoError(t, err)
	assert.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, apperr.KindForbidden, res.Failed[0].Kind)
	assert.Equal(t, apperr.KindForbidden, res.Failed[1].Kind)

	w, err := f.svc.GetWorker(ctx, otherID)
	require.NoError(t, err)
	assert.Zero(t, w.OrderCount)

	_, err = f.svc.ProgressOrders(ctx, f.worker, nil)
	requireKind(t, err, apperr.KindInvalidArgument)

	_, err = f.svc.CompleteOrders(ctx, f.worker, []string{assigned})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAssigned, f.orderStatus(t, assigned))
}

func TestUnassignOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.assignedOrder(t)

	_, err := f.svc.UnassignOrder(ctx, f.customer, id)
	requireKind(t, err, apperr.KindForbidden)

	o, err := f.svc.UnassignOrder(ctx, f.worker, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAccepted, o.Status)
	assert.Equal(t, model.AssignmentUnassigned, o.Assignment.Status)
	assert.Empty(t, o.AssignedWorkerID())
	assert.Nil(t, o.Assignment.AssignedAt)

	_, err = f.svc.UnassignOrder(ctx, f.owner, id)
	requireKind(t, err, apperr.KindInvalidStateTransition)

	// После снятия заказ можно назначить снова.
	res, err := f.svc.AssignWorkers(ctx, f.owner, map[string]string{id: f.worker.AccountID})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, res.Succeeded)

	_, err = f.svc.UnassignOrder(ctx, f.owner, id)
	require.NoError(t, err)
}

func TestAdminMarkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.inProgressOrder(t)

	_, err := f.svc.AdminMarkDelete(ctx, f.owner, id)
	requireKind(t, err, apperr.KindForbidden)

	o, err := f.svc.AdminMarkDelete(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDeleted, o.Status)

	w, err := f.svc.GetWorker(ctx, f.worker)
	require.NoError(t, err)
	assert.False(t, w.IsBusy)
	assert.Equal(t, 0, w.ActiveOrders)

	_, err = f.svc.AdminMarkDelete(ctx, f.admin, id)
	requireKind(t, err, apperr.KindConflict)

	pending := f.submit(t)[0].ID
	o, err = f.svc.AdminMarkDelete(ctx, f.admin, pending)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDeleted, o.Status)
}

// interleavingRepository выполняет before непосредственно перед удалением заказа.
type interleavingRepository struct {
	*repository.MemoryRepository
	before func()
}

func (r interleavingRepository) DeleteOrder(ctx context.Context, id string) (model.OrderStatus, *model.Order, error) {
	r.before()
	return r.MemoryRepository.DeleteOrder(ctx, id)
}

func TestAdminMarkDelete_ConcurrentProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.assignedOrder(t)

	repo := interleavingRepository{MemoryRepository: f.repo, before: func() {
		res, err := f.svc.ProgressOrders(ctx, f.worker, []string{id})
		require.NoError(t, err)
		require.Equal(t, []string{id}, res.Succeeded)
	}}
	admin, err := NewService(repo, f.notifier, Settings{}, nil)
	require.NoError(t, err)

	o, err := admin.AdminMarkDelete(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDeleted, o.Status)

	// Заказ успел перейти в работу, поэтому сотрудник освобождается.
	w, err := f.svc.GetWorker(ctx, f.worker)
	require.NoError(t, err)
	assert.Equal(t, 0, w.ActiveOrders)
	assert.False(t, w.IsBusy)
}

func TestTerminalOrdersNeverMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.completedOrder(t)

	_, err := f.svc.RespondToOrder(ctx, f.owner, completed, true)
	assert.Error(t, err)
	_, err = f.svc.UnassignOrder(ctx, f.worker, completed)
	assert.Error(t, err)
	_, err = f.svc.AdminMarkDelete(ctx, f.admin, completed)
	assert.Error(t, err)
	_, err = f.svc.CancelOrders(ctx, f.owner, []string{completed})
	assert.Error(t, err)

	res, err := f.svc.ProgressOrders(ctx, f.worker, []string{completed})
	require.NoError(t, err)
	assert.Empty(t, res.Succeeded)
	res, err = f.svc.CompleteOrders(ctx, f.worker, []string{completed})
	require.NoError(t, err)
	assert.Empty(t, res.Succeeded)
	res, err = f.svc.AssignWorkers(ctx, f.owner, map[string]string{completed: f.worker.AccountID})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, apperr.KindConflict, res.Failed[0].Kind)

	assert.Equal(t, model.OrderStatusCompleted, f.orderStatus(t, completed))
}

func TestListOrders_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assigned := f.assignedOrder(t)
	pending := f.submit(t)[0].ID

	customerOrders, err := f.svc.ListOrders(ctx, f.customer, nil)
	require.NoError(t, err)
	assert.Len(t, customerOrders, 2)
	assert.Equal(t, pending, customerOrders[0].ID, "newest first")

	ownerOrders, err := f.svc.ListOrders(ctx, f.owner, []model.OrderStatus{model.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, ownerOrders, 1)
	assert.Equal(t, pending, ownerOrders[0].ID)

	workerOrders, err := f.svc.ListOrders(ctx, f.worker, nil)
	require.NoError(t, err)
	require.Len(t, workerOrders, 1)
	assert.Equal(t, assigned, workerOrders[0].ID)

	all, err := f.svc.ListOrders(ctx, f.admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.svc.ListOrders(ctx, model.Identity{AccountID: "x", Role: model.RoleCustomer}, nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.submit(t)[0].ID

	_, err := f.svc.GetOrder(ctx, f.customer, id)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, f.owner, id)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, f.admin, id)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, f.worker, id)
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.svc.GetOrder(ctx, f.customer, "missing")
	requireKind(t, err, apperr.KindNotFound)
}
