package mcpserver

// CSVFormatContract describes the visit log file that LLM consumers should
// follow when reading exports or adding visits.
const CSVFormatContract = `# Passport Visit Log Format Contract

The visit log is a single UTF-8 CSV file with one row per restaurant visit.

## Header

The first line MUST be the header. Columns are matched by name
(case-insensitive); extra columns are ignored. Exports always use this order:

` + "```" + `
country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude
` + "```" + `

## Columns

| Column | Required | Rules |
|---|---|---|
| ` + "`country`" + ` | yes | Country display name, e.g. ` + "`Ghana`" + `. |
| ` + "`iso3`" + ` | yes | ISO 3166-1 alpha-3 code of an African country, upper case. |
| ` + "`city`" + ` | no | Free text. |
| ` + "`restaurant_name`" + ` | yes | Free text. |
| ` + "`rating`" + ` | yes | Number from 0 to 5 inclusive; decimals allowed (` + "`4.5`" + `). |
| ` + "`visit_date`" + ` | yes | ` + "`YYYY-MM-DD`" + `. ` + "`MM/DD/YYYY`" + ` is accepted on load but never written. |
| ` + "`notes`" + ` | no | Free text. Quote it when it contains commas. |
| ` + "`latitude`" + ` | no | Decimal degrees, -90 to 90. |
| ` + "`longitude`" + ` | no | Decimal degrees, -180 to 180. |

## Rules

1. Filters on country accept ISO2 (` + "`GH`" + `) or ISO3 (` + "`GHA`" + `) codes.
2. New visits are appended at the end of the file; existing rows are never
   reordered or reformatted.
3. Rows are addressed by their 1-based position after the header.
4. Rows that break these rules are reported as rejected on load and left in
   the file untouched.

## Example

` + "```" + `
country,iso3,city,restaurant_name,rating,visit_date,notes,latitude,longitude
Ghana,GHA,Accra,Kobi Restaurant,4,2023-05-01,jollof and waakye,5.6037,-0.187
Senegal,SEN,Dakar,Chez Loutcha,5,2023-06-10,"thieboudienne, bissap",14.6928,-17.4467
` + "```" + `
`
