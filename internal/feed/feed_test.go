package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntity_IsGroupLike(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindGroup, true},
		{KindChannel, true},
		{KindUser, false},
		{KindBot, false},
		{KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Entity{Kind: tt.kind}.IsGroupLike())
		})
	}
}

func TestMessage_HasDocumentAndKey(t *testing.T) {
	plain := Message{ID: 42, Caption: "hello"}
	assert.False(t, plain.HasDocument())
	assert.Equal(t, "42", plain.Key())

	withDoc := Message{ID: 43, Document: &Document{FileName: "a.zip"}}
	assert.True(t, withDoc.HasDocument())
}
