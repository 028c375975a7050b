package datasource

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewQueryError_Classification(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		code  string
		want  ErrorKind
	}{
		{"mysql missing table", errors.New("Table 'shop.wp_1_7_orders' doesn't exist"), "1146", ErrorKindSchema},
		{"mysql unknown column", errors.New("Unknown column 'total' in 'field list'"), "1054", ErrorKindSchema},
		{"postgres undefined table", errors.New(`relation "orders" does not exist`), "42P01", ErrorKindSchema},
		{"text fallback", errors.New("no such column: total"), "", ErrorKindSchema},
		{"mysql execution time", errors.New("maximum statement execution time exceeded"), "3024", ErrorKindTimeout},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), "", ErrorKindTimeout},
		{"syntax", errors.New("You have an error in your SQL syntax"), "1064", ErrorKindOther},
		{"access denied", errors.New("Access denied for user"), "1045", ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qe := NewQueryError(context.Background(), tt.cause, tt.code)
			assert.Equal(t, tt.want, qe.Kind)
			assert.ErrorIs(t, qe, tt.cause)
			assert.Equal(t, tt.want, KindOf(fmt.Errorf("wrapped: %w", qe)))
		})
	}
}

func TestNewQueryError_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	qe := NewQueryError(ctx, errors.New("driver: bad connection"), "")
	assert.Equal(t, ErrorKindTimeout, qe.Kind)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKindOther, KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKindTimeout, KindOf(context.DeadlineExceeded))
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(0))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(-5))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(MaxQueryLimit+1))
	assert.Equal(t, 25, EffectiveLimit(25))
}
