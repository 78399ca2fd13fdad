package emailsvc

import (
	"log"
	"sync"

	"github.com/trezcool/academia/core"
)

// mockService records rendered messages for test assertions instead of
// sending them anywhere.
type mockService struct {
	contextData core.ContextData

	mu           sync.Mutex
	sentMessages []core.EmailMessage
}

var _ core.EmailService = (*mockService)(nil)

func NewMockService(conf *core.Config) *mockService {
	return &mockService{
		contextData: core.ContextData{
			AppName:         conf.AppName,
			FrontendBaseURL: conf.FrontendBaseURL,
		},
	}
}

func (svc *mockService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if err := msg.Render(svc.contextData); err != nil {
			log.Printf("rendering email: %v", err)
			continue
		}
		if msg.HasRecipients() && msg.HasContent() {
			svc.mu.Lock()
			svc.sentMessages = append(svc.sentMessages, *msg)
			svc.mu.Unlock()
		}
	}
}

func (svc *mockService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sentMessages...)
}

func (svc *mockService) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sentMessages = nil
}
