package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

// extractionQuery is asked once per document against its retrieved context.
const extractionQuery = `Could you format this invoice data in a dictionary format that can be used to create a dataframe?
Identify the items and their descriptions using logical reasoning. The items and their descriptions (if any)
from the invoice data should be put together. If an item has no description, only include the item name.
Dictionary keys should be:
- 'Invoice Number'
- 'Date'
- 'Customer Name'
- 'All items' (a list of strings, each in the format 'Item Name: Description' or just 'Item Name' if there is no description)
- 'Quantities' (a list of quantities corresponding to each item)
- 'Amounts' (a list of amounts corresponding to each item)
- 'Tax' (Total Tax)
- 'Total Amount'

Example:
{
    'Invoice Number': '<invoice number>',
    'Date': '<invoice date>',
    'Customer Name': '<customer name>',
    'All items': ['Item 1: Description 1', 'Item 2'],
    'Quantities': [1, 2],
    'Amounts': [100, 200],
    'Tax': <Total Tax Amount>,
    'Total Amount': <Total Amount>
}`

var (
	openingFence = regexp.MustCompile("^\\s*```[A-Za-z0-9_-]*")
	closingFence = regexp.MustCompile("```\\s*$")
)

// StripCodeFences removes a markdown fence wrapping the whole answer.
// Backticks inside the answer are kept.
func StripCodeFences(raw string) string {
	text := openingFence.ReplaceAllString(raw, "")
	text = closingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func buildExtractionPrompt(chunks []domain.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("Context information is below.\n")
	sb.WriteString("---------------------\n")
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(chunk.Text))
	}
	sb.WriteString("\n---------------------\n")
	sb.WriteString("Given the context information and not prior knowledge, answer the query.\n")
	fmt.Fprintf(&sb, "Query: %s\n", extractionQuery)
	sb.WriteString("Answer: ")
	return sb.String()
}
