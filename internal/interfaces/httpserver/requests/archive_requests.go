package requests

// ExportMessagesRequest selects messages of a conversation for download.
type ExportMessagesRequest struct {
	MessageIndices []int  `json:"message_indices"`
	Format         string `json:"format" binding:"omitempty,oneof=json csv JSON CSV"`
}

// PageQuery is the pagination query of listing endpoints.
type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=0"`
	PerPage int `form:"per_page" binding:"omitempty,min=0"`
}

// SearchConversationsRequest is the body of a conversation search.
type SearchConversationsRequest struct {
	Query   string `json:"query"`
	Filters struct {
		Account        string `json:"account"`
		DateFrom       string `json:"date_from"`
		HasAttachments bool   `json:"has_attachments"`
	} `json:"filters"`
	Page      int    `json:"page" binding:"omitempty,min=0"`
	PerPage   int    `json:"per_page" binding:"omitempty,min=0"`
	SortBy    string `json:"sort_by" binding:"omitempty,oneof=created_at updated_at name message_count attachment_count artifact_count"`
	SortOrder string `json:"sort_order" binding:"omitempty,oneof=asc desc"`
}
