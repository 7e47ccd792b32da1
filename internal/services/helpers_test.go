package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"community-backend/internal/models"
	"community-backend/internal/storage"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+55 (11) 98765-4321": "5511987654321",
		"":                    "",
		"abc":                 "",
		"0800 123":            "0800123",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("+55 (11) 98765-4321", "Ana Maria")
	if !strings.HasPrefix(link, "https://wa.me/5511987654321?text=") {
		t.Fatalf("link = %q", link)
	}
	if strings.Contains(link, " ") {
		t.Fatalf("link not escaped: %q", link)
	}
	if !strings.Contains(link, "Ana%20Maria") {
		t.Fatalf("sender missing from %q", link)
	}

	if got := WhatsAppLink("12345", "Ana"); got != "" {
		t.Fatalf("short number produced link %q", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrNotConnected, KindForbidden},
		{"wrapped", fmt.Errorf("create group: %w", ErrUnknownMember), KindNotFound},
		{"validation", Validation("bad"), KindValidation},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromStorage(t *testing.T) {
	err := fromStorage(&storage.ValidationError{Message: "File too large."})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Kind != KindValidation || svcErr.Message != "File too large." {
		t.Fatalf("fromStorage = %#v", err)
	}

	plain := errors.New("disk full")
	if fromStorage(plain) != plain {
		t.Fatal("non-validation error was rewritten")
	}
}

func TestConversationTitle(t *testing.T) {
	name := "Youth choir"
	empty := ""
	members := []models.MemberSummary{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Bruno"}}

	tests := []struct {
		name   string
		conv   models.Conversation
		viewer int64
		want   string
	}{
		{"named group", models.Conversation{Type: models.ConversationGroup, Name: &name}, 1, "Youth choir"},
		{"unnamed group", models.Conversation{Type: models.ConversationGroup, Name: &empty}, 1, "Group"},
		{"direct shows other member", models.Conversation{Type: models.ConversationDirect}, 1, "Bruno"},
		{"direct from other side", models.Conversation{Type: models.ConversationDirect}, 2, "Ana"},
		{"direct partner deleted", models.Conversation{Type: models.ConversationDirect}, 3, "Ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conversationTitle(&tt.conv, members, tt.viewer); got != tt.want {
				t.Fatalf("title = %q, want %q", got, tt.want)
			}
		})
	}

	alone := []models.MemberSummary{{ID: 1, Name: "Ana"}}
	if got := conversationTitle(&models.Conversation{Type: models.ConversationDirect}, alone, 1); got != "Conversation" {
		t.Fatalf("lone member title = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("ação de graças", 4); got != "ação…" {
		t.Fatalf("got %q", got)
	}
}
