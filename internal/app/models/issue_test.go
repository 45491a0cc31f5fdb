package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to IssueStatus
		want     bool
	}{
		{StatusOpen, StatusPending, true},
		{StatusOpen, StatusAssigned, true},
		{StatusOpen, StatusResolved, true},
		{StatusOpen, StatusInProgress, false},
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusClosed, false},
		{StatusAssigned, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusOpen, false},
		{StatusResolved, StatusResolved, false},
		{StatusResolved, StatusClosed, true},
		{StatusResolved, StatusAssigned, false},
		{StatusClosed, StatusOpen, false},
		{StatusClosed, StatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestIssueStatusTerminal(t *testing.T) {
	assert.True(t, StatusClosed.Terminal())
	assert.False(t, StatusResolved.Terminal())
	assert.False(t, StatusOpen.Terminal())
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, IssueStatus("reopened").Valid())

	assert.True(t, CategoryCourseRegistration.Valid())
	assert.False(t, IssueCategory("gossip").Valid())

	assert.True(t, PriorityHigh.Valid())
	assert.False(t, IssuePriority("urgent").Valid())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" HOD ")
	assert.True(t, ok)
	assert.Equal(t, RoleHOD, r)

	_, ok = ParseRole("dean")
	assert.False(t, ok)

	for _, role := range AllRoles {
		assert.True(t, role.Valid(), role)
	}
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", (&User{FullName: "Jane Doe", Username: "x"}).DisplayName())
	assert.Equal(t, "Ann Reg", (&User{FirstName: "Ann", LastName: "Reg"}).DisplayName())
	assert.Equal(t, "u1", (&User{Username: "u1"}).DisplayName())
}

func TestIssueIsAssignedTo(t *testing.T) {
	id := int64(7)
	issue := &Issue{AssignedToID: &id}
	assert.True(t, issue.IsAssignedTo(7))
	assert.False(t, issue.IsAssignedTo(8))
	assert.False(t, (&Issue{}).IsAssignedTo(7))
}
