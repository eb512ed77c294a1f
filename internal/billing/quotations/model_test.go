package quotations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

func TestTransitionStatusGraph(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusSent, StatusViewed, true},
		{StatusViewed, StatusAccepted, true},
		{StatusViewed, StatusRejected, true},
		{StatusViewed, StatusExpired, true},
		{StatusDraft, StatusViewed, false},
		{StatusDraft, StatusAccepted, false},
		{StatusSent, StatusAccepted, false},
		{StatusSent, StatusDraft, false},
		{StatusAccepted, StatusSent, false},
		{StatusRejected, StatusViewed, false},
		{StatusExpired, StatusSent, false},
		{StatusConverted, StatusSent, false},
	}
	for _, tc := range cases {
		q := &Quotation{Status: tc.from, ApprovalStatus: ApprovalPending}
		err := q.TransitionStatus(tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			require.Equal(t, tc.to, q.Status)
		} else {
			require.ErrorIs(t, err, shared.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
			require.Equal(t, tc.from, q.Status, "failed transition must not mutate")
		}
	}
}

func TestConvertReachableFromAnyStateWhenApproved(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRejected, StatusExpired} {
		q := &Quotation{Status: from, ApprovalStatus: ApprovalApproved}
		require.NoError(t, q.TransitionStatus(StatusConverted), "from %s", from)
		require.Equal(t, StatusConverted, q.Status)
	}
}

func TestCanConvertGuards(t *testing.T) {
	q := &Quotation{Number: "QT-2608-0001", Status: StatusAccepted, ApprovalStatus: ApprovalPending}
	require.ErrorIs(t, q.CanConvert(), shared.ErrInvalidTransition, "unapproved quotation must not convert")

	q.ApprovalStatus = ApprovalApproved
	require.NoError(t, q.CanConvert())

	q.Status = StatusConverted
	require.ErrorIs(t, q.CanConvert(), shared.ErrInvalidTransition, "double conversion must fail")
}

func TestApprovalIsTerminal(t *testing.T) {
	q := &Quotation{ApprovalStatus: ApprovalPending}
	require.NoError(t, q.Approve())
	require.Equal(t, ApprovalApproved, q.ApprovalStatus)
	require.ErrorIs(t, q.Approve(), shared.ErrInvalidTransition)
	require.ErrorIs(t, q.RejectApproval(), shared.ErrInvalidTransition)

	q = &Quotation{ApprovalStatus: ApprovalPending}
	require.NoError(t, q.RejectApproval())
	require.Equal(t, ApprovalRejected, q.ApprovalStatus)
	require.ErrorIs(t, q.Approve(), shared.ErrInvalidTransition)
}

func TestItemsEditableOnlyInDraft(t *testing.T) {
	require.True(t, (&Quotation{Status: StatusDraft}).ItemsEditable())
	for _, s := range []Status{StatusSent, StatusViewed, StatusAccepted, StatusRejected, StatusExpired, StatusConverted} {
		require.False(t, (&Quotation{Status: s}).ItemsEditable(), "status %s", s)
	}
}
