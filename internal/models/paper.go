package models

// Paper is a single catalog entry for one day's listing.
type Paper struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      string   `json:"abstract"`
	PDFURL        string   `json:"pdf_url"`
	Topics        []string `json:"topics"`
	PublishedDate string   `json:"published_date"`
	PaperID       string   `json:"paper_id"`
	Upvotes       int      `json:"upvotes"`
}
