package notify

import "testing"

func FuzzNormalizeReceipt(f *testing.F) {
	f.Add("n-1", "accepted", "key-1")
	f.Add("", "", "key-2")

	f.Fuzz(func(t *testing.T, id, status, key string) {
		if key == "" {
			t.Skip()
		}
		receipt := normalizeReceipt(receiptPayload{ID: optionalString(id), Status: optionalString(status)}, key)
		if receipt.ID == "" {
			t.Fatalf("receipt id should never be empty")
		}
		if receipt.Status == "" {
			t.Fatalf("receipt status should never be empty")
		}
	})
}

func FuzzBuildPayload(f *testing.F) {
	f.Add("user-1", "Service due", "body")
	f.Add("user-2", "   ", "")

	f.Fuzz(func(t *testing.T, user, title, body string) {
		payload := buildPayload(Message{UserID: user, Title: title, Body: body})
		if payload.Title == "" {
			t.Fatalf("title should never be empty")
		}
		if payload.To != user {
			t.Fatalf("recipient changed: %q != %q", payload.To, user)
		}
	})
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
