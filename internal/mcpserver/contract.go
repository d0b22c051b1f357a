package mcpserver

// RuleFormatContract describes how learned rules are stored, so that
// callers can phrase rules well and read the document directly.
const RuleFormatContract = `# Learned Rules Format Contract

Learned rules live in a single section of a Markdown instruction document
(CLAUDE.md). The project document nearest to the working directory is used;
without one, the global document in ~/.claude is used.

## Structure

` + "```" + `markdown
## Learned Rules

- A legacy rule without metadata

### Bash

- Use rg instead of grep <!-- @date:2026-10-15 @category:bash -->

### Code Style

- Keep functions under 40 lines <!-- @date:2026-10-01 @category:code-style -->
` + "```" + `

## Rules

1. **One section.** The section starts at the ` + "`" + `## Learned Rules` + "`" + ` line and ends at
   the next heading of the same or a higher level. Everything outside it is
   never touched.
2. **One rule per bullet.** Bullets start with ` + "`" + `- ` + "`" + ` or ` + "`" + `* ` + "`" + `. Rule text is a
   single line; line breaks are folded into spaces.
3. **Metadata** is a trailing HTML comment with ` + "`" + `@date:YYYY-MM-DD` + "`" + ` and
   ` + "`" + `@category:key` + "`" + `. Both are optional when reading; both are written on
   every add or update.
4. **Categories** are lowercase hyphenated keys (` + "`" + `code-style` + "`" + `). Headings show
   them title-cased (` + "`" + `### Code Style` + "`" + `). A bullet without an explicit category
   belongs to the heading above it.
5. **Order.** Rules without a category come first, then categories in
   priority order (bash, git, testing, code-style, architecture, security,
   performance, documentation, tooling, general), then any other category
   alphabetically. Rule numbers in tool output follow this order.
6. **Duplicates.** A rule is not added when its text contains, or is contained
   in, an existing rule (ignoring case). Rules that only mean the same thing
   are not detected: list the rules first and update instead of adding.

## Writing good rules

- Imperative and specific: "Use pytest, not unittest", not "testing stuff".
- One idea per rule. Split compound corrections.
- Pass the correction that taught the rule as ` + "`" + `context` + "`" + `; it is kept in the
  change history, not in the document.
- Run ` + "`" + `review_rules` + "`" + ` now and then and update or delete rules that no longer hold.
`
