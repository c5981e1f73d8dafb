package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

func req(credits, months int) *Requirements {
	return &Requirements{MinAttendanceCredits: credits, MinMonths: months}
}

func sampleGrades() []Grade {
	return []Grade{
		// deliberately out of order
		{ID: "adult-4-kyu", Name: "4th kyu", Category: CategoryAdult, Ordinal: 2, Requirements: req(30, 4)},
		{ID: "adult-5-kyu", Name: "5th kyu", Category: CategoryAdult, Ordinal: 1, Requirements: req(20, 3)},
		{ID: "adult-3-kyu", Name: "3rd kyu", Category: CategoryAdult, Ordinal: 3},
		{ID: "youth-white", Name: "White", Category: CategoryYouth, Ordinal: 10, Requirements: req(12, 2)},
		{ID: "youth-yellow", Name: "Yellow", Category: CategoryYouth, Ordinal: 20},
	}
}

func TestNewLadder_OrdersByOrdinal(t *testing.T) {
	l, err := NewLadder(sampleGrades())
	require.NoError(t, err)

	adult := l.Grades(CategoryAdult)
	require.Len(t, adult, 3)
	assert.Equal(t, ID("adult-5-kyu"), adult[0].ID)
	assert.Equal(t, ID("adult-3-kyu"), adult[2].ID)
	assert.Equal(t, []Category{CategoryAdult, CategoryYouth}, l.Categories())
}

func TestLadder_Next(t *testing.T) {
	l, err := NewLadder(sampleGrades())
	require.NoError(t, err)

	next, ok, err := l.Next("adult-5-kyu")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ID("adult-4-kyu"), next.ID)

	_, ok, err = l.Next("adult-3-kyu")
	require.NoError(t, err)
	assert.False(t, ok, "terminal grade has no next grade")

	next, ok, err = l.Next("youth-white")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, CategoryYouth, next.Category, "next grade stays in the same ladder")

	_, _, err = l.Next("black-belt")
	assert.True(t, shared.IsConfiguration(err))
}

func TestLadder_RequirementsFor(t *testing.T) {
	l, err := NewLadder(sampleGrades())
	require.NoError(t, err)

	r, ok, err := l.RequirementsFor("adult-4-kyu")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Requirements{MinAttendanceCredits: 20, MinMonths: 3}, r)

	r, ok, err = l.RequirementsFor("adult-3-kyu")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30, r.MinAttendanceCredits)

	_, ok, err = l.RequirementsFor("adult-5-kyu")
	require.NoError(t, err)
	assert.False(t, ok, "entry grade is never a promotion target")

	_, _, err = l.RequirementsFor("nope")
	assert.True(t, shared.IsConfiguration(err))
}

func TestLadder_EntryAndTerminal(t *testing.T) {
	l, err := NewLadder(sampleGrades())
	require.NoError(t, err)

	entry, err := l.Entry(CategoryYouth)
	require.NoError(t, err)
	assert.Equal(t, ID("youth-white"), entry.ID)

	terminal, err := l.IsTerminal("youth-yellow")
	require.NoError(t, err)
	assert.True(t, terminal)

	terminal, err = l.IsTerminal("youth-white")
	require.NoError(t, err)
	assert.False(t, terminal)

	assert.True(t, l.Has("adult-4-kyu"))
	assert.False(t, l.Has("adult-1-dan"))
}

func TestNewLadder_RejectsInconsistentCatalog(t *testing.T) {
	cases := map[string][]Grade{
		"empty": {},
		"duplicate id": {
			{ID: "a", Category: CategoryAdult, Ordinal: 1, Requirements: req(1, 1)},
			{ID: "a", Category: CategoryAdult, Ordinal: 2},
		},
		"equal ordinals": {
			{ID: "a", Category: CategoryAdult, Ordinal: 1, Requirements: req(1, 1)},
			{ID: "b", Category: CategoryAdult, Ordinal: 1},
		},
		"terminal with requirements": {
			{ID: "a", Category: CategoryAdult, Ordinal: 1, Requirements: req(1, 1)},
			{ID: "b", Category: CategoryAdult, Ordinal: 2, Requirements: req(1, 1)},
		},
		"missing requirements": {
			{ID: "a", Category: CategoryAdult, Ordinal: 1},
			{ID: "b", Category: CategoryAdult, Ordinal: 2},
		},
		"unknown category": {
			{ID: "a", Category: "senior", Ordinal: 1},
		},
		"negative requirement": {
			{ID: "a", Category: CategoryAdult, Ordinal: 1, Requirements: req(-1, 1)},
			{ID: "b", Category: CategoryAdult, Ordinal: 2},
		},
	}

	for name, grades := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLadder(grades)
			require.Error(t, err)
			assert.True(t, shared.IsConfiguration(err))
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("youth")
	require.NoError(t, err)
	assert.Equal(t, CategoryYouth, c)

	_, err = ParseCategory("kids")
	assert.Error(t, err)
}
