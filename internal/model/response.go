package model

// Response is the user-facing enrichment payload. Optional fields are
// pointers so that absent values serialize as null instead of being omitted.
type Response struct {
	TaxID        string   `json:"taxId" yaml:"taxId"`
	LegalName    *string  `json:"legalName" yaml:"legalName"`
	TradeName    *string  `json:"tradeName" yaml:"tradeName"`
	Status       *string  `json:"status" yaml:"status"`
	ActivityCode *string  `json:"activityCode" yaml:"activityCode"`
	Address      *string  `json:"address" yaml:"address"`
	Site         *string  `json:"site" yaml:"site"`
	Email        *string  `json:"email" yaml:"email"`
	Instagram    *string  `json:"instagram" yaml:"instagram"`
	Logo         *string  `json:"logo" yaml:"logo"`
	Sources      []string `json:"sources" yaml:"sources"`
	RequestID    string   `json:"requestId" yaml:"requestId"`
	Message      string   `json:"message" yaml:"message"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one entry of a conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is what the chat dispatcher returns: either a full enrichment
// response or a plain conversational message.
type Reply struct {
	Message    string    `json:"message"`
	Enrichment *Response `json:"enrichment,omitempty"`
}
