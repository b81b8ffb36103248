package ds

// Archive is the persisted session-state document. Every list keeps the
// order of its panel.
type Archive struct {
	PageSession *SessionPage `json:"page_session,omitempty"`
	PageSub     SubPage      `json:"page_sub"`
	PagePut     PutPage      `json:"page_put"`
	PageGet     GetPage      `json:"page_get"`
}

type SessionPage struct {
	ConfigFiles []ConfigFileEntry `json:"config_files"`
}

type ConfigFileEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type SubPage struct {
	Subscribers []SubscriberEntry `json:"subscribers"`
}

type SubscriberEntry struct {
	Name       string   `json:"name"`
	KeyExpr    string   `json:"key_expr"`
	Origin     Locality `json:"origin"`
	BufferSize int      `json:"buffer_size,omitempty"`
}

type PutPage struct {
	Puts []PutEntry `json:"puts"`
}

type PutEntry struct {
	Name              string            `json:"name"`
	Key               string            `json:"key"`
	CongestionControl CongestionControl `json:"congestion_control"`
	Priority          Priority          `json:"priority"`
	Attachment        string            `json:"attachment,omitempty"`
	Value             PayloadEntry      `json:"value"`
}

type GetPage struct {
	Gets []GetEntry `json:"gets"`
}

type GetEntry struct {
	Name          string        `json:"name"`
	Key           string        `json:"key"`
	Target        QueryTarget   `json:"target"`
	Consolidation Consolidation `json:"consolidation"`
	Locality      Locality      `json:"locality"`
	// Timeout in milliseconds.
	Timeout    uint64        `json:"timeout"`
	Attachment string        `json:"attachment,omitempty"`
	Value      *PayloadEntry `json:"value,omitempty"`
}

// PayloadSource says where an editor takes its bytes from.
type PayloadSource string

const (
	PayloadFromInput PayloadSource = "input"
	PayloadFromFile  PayloadSource = "file"
)

type PayloadEntry struct {
	EncodingID     uint16        `json:"encoding_id"`
	EncodingSchema string        `json:"encoding_schema,omitempty"`
	Source         PayloadSource `json:"source"`
	Input          string        `json:"input,omitempty"`
	FilePath       string        `json:"file_path,omitempty"`
}

// NewArchive returns a document with empty, non-nil lists.
func NewArchive() *Archive {
	return &Archive{
		PageSub: SubPage{Subscribers: []SubscriberEntry{}},
		PagePut: PutPage{Puts: []PutEntry{}},
		PageGet: GetPage{Gets: []GetEntry{}},
	}
}
