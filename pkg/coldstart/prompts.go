package coldstart

import (
	"fmt"
	"strings"
)

const extractionInstructions = `You are a literary expert who also briefs a conceptual illustrator.

TASK
For the book below (title, optional author) return a list of quote items. Every item has:
1. quote_text: an authentic quote from the book, or a natural paraphrase when you are unsure
2. is_exact_quote: true only when quote_text is the exact wording
3. drawing_prompt: an idea for a conceptual illustration, never a drawing style
   - a metaphorical scene expressing the meaning of the quote
   - short, witty, philosophical, a little absurd
   - at most 18 English tokens
   - must not name an illustration style or an illustrator; describe only the idea

RULES
1. Never fabricate quotes.
2. When you are not completely sure of the exact wording, give a natural paraphrase or a key insight of the book instead.
3. quote_text is at most 40 Chinese characters.
4. quote_text carries no markers such as "【大意】" and no other prefix or suffix.
5. drawing_prompt is metaphorical only, for example "a donut ouroboros debating a tiny sun".

Answer with JSON only, in exactly this shape:

{
  "quote_cards_raw": [
    {
      "quote_text": "<quote or paraphrase, no markers>",
      "is_exact_quote": true,
      "drawing_prompt": "<metaphorical illustration idea>"
    }
  ]
}`

const illustrationInstructions = `You draw philosophical, funny, minimalist comics for quote cards.

STYLE (required)
- In the spirit of Liana Finck, Liza Donnelly and Jean Jullien
- Minimal line drawing in mostly black ink; small colour accents may cover at most 10% of the image
- Loose, imperfect, hand-drawn strokes with an elegant editorial cartoon personality
- Plenty of negative space
- Humour: witty and surprising, playful philosophy, light satire and gentle self-mockery, dry
  understatement, visual punchlines, clever metaphors and whimsical logic
- Metaphorical rather than literal
- No shading, gradients, 3D, realism or cute style
- No faces unless reduced to very stylized minimal abstractions

YOU RECEIVE
book title, author, quote text and a drawing concept (an idea only)

PRODUCE
One finished portrait quote card for a phone screen, preferably 1080x1920 (900x1600 or a similar
tall ratio is acceptable), containing:
- the minimalist illustration of the drawing concept
- the quote text, clearly readable and covering at least 30% of the card
- the book title and author at the top, small and subtle

LAYOUT
- The quote is the visual anchor and must be easy to read.
- The illustration supports the quote so the card reads as one design.
- Keep the minimalist look and the negative space.

LETTERING (very important)
- Every piece of text (quote, title, author) is handwritten: casual, loose and imperfect, like
  hand lettering, brush pen, marker or casual script.
- Never use standard sans-serif or formal serif fonts such as Arial, Helvetica, SimSun or SimHei, and
  nothing rigid or mechanical.
- The handwriting matches the imperfect line of the drawing.

Return the complete card image with the illustration and the handwritten text together.`

// extractionPrompt is sent as a single user turn.
func extractionPrompt(title, author string, count int) string {
	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\n\nInput:\n")
	fmt.Fprintf(&b, "bookTitle: %q", title)
	if author != "" {
		fmt.Fprintf(&b, ", author: %q", author)
	}
	fmt.Fprintf(&b, ", quoteCount: %d", count)
	return b.String()
}

func illustrationPrompt(title, author, quote, brief string) string {
	var b strings.Builder
	b.WriteString(illustrationInstructions)
	fmt.Fprintf(&b, "\n\nBook Title: %q\n", title)
	if author != "" {
		fmt.Fprintf(&b, "Author: %q\n", author)
	}
	fmt.Fprintf(&b, "Quote Text: %q\n", quote)
	fmt.Fprintf(&b, "Drawing Concept: %s\n\nGenerate the illustration now.", brief)
	return b.String()
}
