// Package extract turns raw sources into ordered text sections.
//
// A Registry maps file extensions to Extractors:
//
//   - pdf: one section per page (langchaingo PDF loader)
//   - txt: a single section (langchaingo text loader)
//   - csv: one section per row (langchaingo CSV loader)
//   - doc, docx: the word body, paragraphs separated by newlines
//   - xls, xlsx: one section per sheet, cells tab-separated
//
// Legacy binary .doc and .xls files are routed to the zip-based readers and
// fail with ErrInvalidArchive unless they are actually OOXML.
//
// HTTPFetcher retrieves a URL and yields its readable text with the page
// title in the "title" metadata key.
//
// Sections are langchaingo schema.Document values so they feed the text
// splitter directly.
package extract
