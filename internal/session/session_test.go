package session

import (
	"reflect"
	"sync"
	"testing"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

func TestAppendAndRollback(t *testing.T) {
	s := newSession("c1")
	s.Append(domain.UserMessage("q1"), domain.AssistantMessage("a1"))
	snap := s.Messages()

	s.Append(domain.UserMessage("q2"))
	s.Rollback(1)
	if !reflect.DeepEqual(s.Messages(), snap) {
		t.Errorf("Messages() = %+v, want %+v", s.Messages(), snap)
	}

	s.Rollback(10)
	if s.Len() != 0 {
		t.Errorf("Len() = %d after rolling back everything", s.Len())
	}
	if len(snap) != 2 {
		t.Error("snapshot was modified by rollback")
	}
}

func TestAssistantText(t *testing.T) {
	s := newSession("c1")
	s.Append(
		domain.UserMessage("describe"),
		domain.AssistantMessage("Lambda behind API Gateway"),
		domain.UserMessage("more"),
		domain.AssistantMessage("plus DynamoDB"),
	)
	if got := s.AssistantText(); got != "Lambda behind API Gateway plus DynamoDB" {
		t.Errorf("AssistantText() = %q", got)
	}
}

func TestTranscript(t *testing.T) {
	s := newSession("c1")
	if got := s.Transcript(); got != "# Transcript" {
		t.Errorf("empty transcript = %q", got)
	}
	s.Record("Solution Architecture", "<xml/>")
	s.Record("Cost Estimates", "| a |")
	want := "# Transcript\n\n## Solution Architecture\n\n<xml/>\n\n## Cost Estimates\n\n| a |"
	if got := s.Transcript(); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}

func TestSelectedKinds(t *testing.T) {
	s := newSession("c1")
	s.Select(domain.KindCost, true)
	s.Select(domain.KindArchitecture, true)
	s.Select(domain.KindDSL, false)
	want := []domain.ArtifactKind{domain.KindArchitecture, domain.KindCost}
	if got := s.SelectedKinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("SelectedKinds() = %v, want %v", got, want)
	}
}

func TestStoreIsolation(t *testing.T) {
	st := NewStore()
	a := st.GetOrCreate("a")
	b := st.GetOrCreate("b")
	a.Append(domain.UserMessage("only a"))

	if b.Len() != 0 {
		t.Error("sessions share state")
	}
	if again := st.GetOrCreate("a"); again != a {
		t.Error("GetOrCreate should return the existing session")
	}
	if fresh := st.GetOrCreate(""); fresh.ID == "" || fresh == a {
		t.Error("empty id should create a new session with a generated id")
	}
	st.Delete("a")
	if _, ok := st.Get("a"); ok {
		t.Error("session still present after Delete")
	}
}

func TestStoreConcurrentSessions(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := st.Create()
			s.Lock()
			s.Append(domain.UserMessage("x"))
			s.Unlock()
		}()
	}
	wg.Wait()
	if st.Len() != 20 {
		t.Errorf("Len() = %d", st.Len())
	}
}

func TestThreadsAreIndependent(t *testing.T) {
	s := newSession("c1")
	s.Append(domain.UserMessage("solution"))
	s.AppendThread(domain.KindDSL, domain.UserMessage("dsl prompt"))
	s.AppendThread(domain.KindCost, domain.UserMessage("cost prompt"), domain.AssistantMessage("table"))

	s.RollbackThread(domain.KindDSL, 1)
	if got := s.Thread(domain.KindDSL); len(got) != 0 {
		t.Errorf("dsl thread = %+v, want empty", got)
	}
	if got := s.Thread(domain.KindCost); len(got) != 2 {
		t.Errorf("cost thread = %+v", got)
	}
	if s.Len() != 1 {
		t.Errorf("main history changed: Len() = %d", s.Len())
	}
	s.RollbackThread(domain.KindCDK, 3)
}

func TestArtifact(t *testing.T) {
	s := newSession("c1")
	if _, ok := s.Artifact(domain.KindArchitecture); ok {
		t.Error("unexpected artifact")
	}
	s.SetArtifact(domain.KindArchitecture, "<mxGraphModel/>")
	if got, ok := s.Artifact(domain.KindArchitecture); !ok || got != "<mxGraphModel/>" {
		t.Errorf("Artifact() = %q, %v", got, ok)
	}
}
