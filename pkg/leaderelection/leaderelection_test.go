package leaderelection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func TestCoordinator_CreatesLeaseWhenMissing(t *testing.T) {
	client := k8sfake.NewSimpleClientset()
	state := NewState()
	c := New(client, Config{HolderID: "pod-a", LeaseNamespace: "kulta-system"}, state)

	leader, err := c.acquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, leader)

	lease, err := client.CoordinationV1().Leases("kulta-system").Get(context.Background(), LeaseName, metav1.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, lease.Spec.HolderIdentity)
	assert.Equal(t, "pod-a", *lease.Spec.HolderIdentity)
	assert.Equal(t, int32(0), *lease.Spec.LeaseTransitions)
}

func TestCoordinator_RenewsOwnLease(t *testing.T) {
	now := metav1.NewMicroTime(time.Now().Add(-1 * time.Minute))
	client := k8sfake.NewSimpleClientset(&coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: LeaseName, Namespace: "kulta-system"},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       strPtr("pod-a"),
			RenewTime:            &now,
			LeaseDurationSeconds: int32p(15),
			LeaseTransitions:     int32p(2),
		},
	})
	state := NewState()
	c := New(client, Config{HolderID: "pod-a", LeaseNamespace: "kulta-system"}, state)

	leader, err := c.acquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, leader)

	lease, err := client.CoordinationV1().Leases("kulta-system").Get(context.Background(), LeaseName, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), *lease.Spec.LeaseTransitions, "renewing does not bump transitions")
}

func TestCoordinator_FollowsWhenHeldByAnotherAndFresh(t *testing.T) {
	now := metav1.NewMicroTime(time.Now())
	client := k8sfake.NewSimpleClientset(&coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: LeaseName, Namespace: "kulta-system"},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       strPtr("pod-b"),
			RenewTime:            &now,
			LeaseDurationSeconds: int32p(15),
			LeaseTransitions:     int32p(0),
		},
	})
	state := NewState()
	c := New(client, Config{HolderID: "pod-a", LeaseNamespace: "kulta-system"}, state)

	leader, err := c.acquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.False(t, leader)
}

func TestCoordinator_SeizesExpiredLease(t *testing.T) {
	stale := metav1.NewMicroTime(time.Now().Add(-1 * time.Hour))
	client := k8sfake.NewSimpleClientset(&coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: LeaseName, Namespace: "kulta-system"},
		Spec: coordinationv1.LeaseSpec{
			HolderIdentity:       strPtr("pod-b"),
			RenewTime:            &stale,
			LeaseDurationSeconds: int32p(15),
			LeaseTransitions:     int32p(3),
		},
	})
	state := NewState()
	c := New(client, Config{HolderID: "pod-a", LeaseNamespace: "kulta-system"}, state)

	leader, err := c.acquireOrRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, leader)

	lease, err := client.CoordinationV1().Leases("kulta-system").Get(context.Background(), LeaseName, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pod-a", *lease.Spec.HolderIdentity)
	assert.Equal(t, int32(4), *lease.Spec.LeaseTransitions)
}

func TestCoordinator_TickUpdatesState(t *testing.T) {
	client := k8sfake.NewSimpleClientset()
	state := NewState()
	c := New(client, Config{HolderID: "pod-a", LeaseNamespace: "kulta-system"}, state)

	assert.False(t, state.IsLeader())
	c.tick(context.Background())
	assert.True(t, state.IsLeader())
}

func strPtr(v string) *string { return &v }
