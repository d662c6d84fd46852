package nl2sql

import "strings"

const promptTemplate = `
### Task
Generate a SQL query to answer the following question:
"""{question}"""

### Database Schema
{schema_ddl}

### Answer
Given the database schema, here is the SQL query:
`

// BuildPrompt renders the completion prompt. The placeholders are filled
// literally, so braces in either argument are kept as typed.
func BuildPrompt(question, schemaDDL string) string {
	r := strings.NewReplacer("{question}", question, "{schema_ddl}", schemaDDL)
	return r.Replace(promptTemplate)
}
