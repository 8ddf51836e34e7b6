package discord

import (
	"testing"
	"time"
)

func TestUserLimiter(t *testing.T) {
	l := newUserLimiter(50 * time.Millisecond)

	if !l.Allow("u1") {
		t.Fatal("primera llamada debió pasar")
	}
	if l.Allow("u1") {
		t.Fatal("segunda llamada dentro de la ventana debió bloquearse")
	}
	if !l.Allow("u2") {
		t.Fatal("otro usuario no comparte ventana")
	}

	time.Sleep(60 * time.Millisecond)
	if !l.Allow("u1") {
		t.Fatal("pasada la ventana debió permitir de nuevo")
	}
}
