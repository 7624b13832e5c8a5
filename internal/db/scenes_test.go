package db

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/internal/models"
)

func idSet(ids ...uuid.UUID) map[uuid.UUID]bool {
	m := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestValidatePermutationAccepts(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	current := idSet(a, b, c)

	// Any ordering of the full set is valid, including the identity
	orders := [][]uuid.UUID{
		{a, b, c},
		{c, a, b},
		{b, c, a},
	}
	for _, order := range orders {
		if err := validatePermutation(current, order); err != nil {
			t.Errorf("expected valid permutation %v, got %v", order, err)
		}
	}
}

func TestValidatePermutationWrongLength(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	current := idSet(a, b, c)

	err := validatePermutation(current, []uuid.UUID{a, b})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for short list, got %v", err)
	}

	err = validatePermutation(current, []uuid.UUID{a, b, c, uuid.New()})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for long list, got %v", err)
	}
}

func TestValidatePermutationDuplicate(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	current := idSet(a, b, c)

	err := validatePermutation(current, []uuid.UUID{a, b, b})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for duplicate id, got %v", err)
	}
}

func TestValidatePermutationForeignID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	current := idSet(a, b)

	// Right length, but one id belongs to some other job
	err := validatePermutation(current, []uuid.UUID{a, uuid.New()})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for foreign id, got %v", err)
	}
}
