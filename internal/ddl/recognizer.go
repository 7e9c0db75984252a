// Package ddl recognizes CREATE TABLE and ALTER TABLE ... ADD CONSTRAINT
// statements and records what they declare in a schema.Schema.
//
// The recognizer accepts the common subset shared by PostgreSQL, MySQL,
// SQLite and Oracle dumps. Anything outside that subset fails the statement
// with a *SyntaxError; other statements are unaffected.
package ddl

import (
	"fmt"
	"strings"

	"github.com/tordrt/sqlimport/internal/schema"
	"github.com/tordrt/sqlimport/internal/sqlname"
)

// construct is the statement form being recognized
type construct int

const (
	constructCreateTable construct = iota + 1
	constructAlterTable
)

func (c construct) String() string {
	if c == constructAlterTable {
		return "ALTER TABLE"
	}
	return "CREATE TABLE"
}

// parseContext is threaded through the constraint handlers in place of
// per-statement flags
type parseContext struct {
	kind  construct
	table *schema.Table
}

// columnKeywords end a column's type name and start a column constraint
var columnKeywords = map[string]bool{
	"CONSTRAINT":     true,
	"PRIMARY":        true,
	"NOT":            true,
	"NULL":           true,
	"UNIQUE":         true,
	"CHECK":          true,
	"DEFAULT":        true,
	"COLLATE":        true,
	"REFERENCES":     true,
	"AUTO_INCREMENT": true,
	"AUTOINCREMENT":  true,
	"IDENTITY":       true,
	"GENERATED":      true,
	"AS":             true,
	"COMMENT":        true,
	"CHARSET":        true,
	"UNSIGNED":       true,
	"SIGNED":         true,
	"ZEROFILL":       true,
	"ON":             true,
}

// Recognizer applies DDL statements to a schema. Statements are independent
// of each other except for table lookups done by ALTER TABLE.
type Recognizer struct {
	schema *schema.Schema
}

// NewRecognizer creates a recognizer that mutates s
func NewRecognizer(s *schema.Schema) *Recognizer {
	return &Recognizer{schema: s}
}

// Recognize parses one statement and applies it to the schema.
//
// On failure the returned error is a *SyntaxError. A table is added to the
// schema as soon as its name has been read, and completed columns and
// constraints stay in place; the column being parsed when the error occurred
// is dropped.
func (r *Recognizer) Recognize(statement string) error {
	tokens, err := lex(statement)
	if err != nil {
		return err
	}

	p := &parser{src: statement, tokens: tokens, schema: r.schema}

	switch tok := p.peek(); {
	case tok.is("CREATE"):
		return p.createTable()
	case tok.is("ALTER"):
		return p.alterTable()
	default:
		return p.errorf(tok, "expected CREATE TABLE or ALTER TABLE")
	}
}

type parser struct {
	src    string
	tokens []token
	pos    int
	schema *schema.Schema
}

func (p *parser) peek() token {
	return p.peekN(0)
}

func (p *parser) peekN(n int) token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// accept consumes the keyword when it is next
func (p *parser) accept(keyword string) bool {
	if p.peek().is(keyword) {
		p.pos++
		return true
	}
	return false
}

// acceptSeq consumes the keywords only when all of them are next, in order
func (p *parser) acceptSeq(keywords ...string) bool {
	for i, kw := range keywords {
		if !p.peekN(i).is(kw) {
			return false
		}
	}
	p.pos += len(keywords)
	return true
}

func (p *parser) acceptPunct(punct string) bool {
	if p.peek().isPunct(punct) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(keyword string) error {
	if !p.accept(keyword) {
		return p.errorf(p.peek(), "expected %s", keyword)
	}
	return nil
}

func (p *parser) expectPunct(punct string) error {
	if !p.acceptPunct(punct) {
		return p.errorf(p.peek(), "expected %q", punct)
	}
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Line:    tok.line,
		Column:  tok.col,
		Near:    tok.text,
		Message: fmt.Sprintf(format, args...),
		Kind:    KindGrammarMismatch,
	}
}

// identifier reads one (possibly quoted) name
func (p *parser) identifier() (string, error) {
	tok := p.peek()
	if !tok.isName() {
		return "", p.errorf(tok, "expected identifier")
	}
	p.pos++
	return sqlname.Unquote(tok.text), nil
}

// qualifiedName reads schema.name and keeps the last part
func (p *parser) qualifiedName() (string, error) {
	first := p.peek()
	if _, err := p.identifier(); err != nil {
		return "", err
	}
	for p.peek().isPunct(".") {
		p.pos++
		if _, err := p.identifier(); err != nil {
			return "", err
		}
	}
	return sqlname.Base(p.src[first.start:p.tokens[p.pos-1].end]), nil
}

// identList reads a parenthesized column list. Index decorations such as a
// prefix length, COLLATE or sort order are skipped.
func (p *parser) identList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	var names []string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		names = append(names, name)

		if p.peek().isPunct("(") {
			if err := p.skipParens(); err != nil {
				return nil, err
			}
		}
		if p.accept("COLLATE") {
			if _, err := p.identifier(); err != nil {
				return nil, err
			}
		}
		if !p.accept("ASC") {
			p.accept("DESC")
		}

		if p.acceptPunct(",") {
			continue
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return names, nil
	}
}

// skipParens consumes a balanced parenthesized group starting at "("
func (p *parser) skipParens() error {
	open := p.peek()
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for depth := 1; depth > 0; {
		tok := p.next()
		switch {
		case tok.kind == tokEOF:
			return p.errorf(open, "unbalanced parentheses")
		case tok.isPunct("("):
			depth++
		case tok.isPunct(")"):
			depth--
		}
	}
	return nil
}

// skipElement consumes tokens up to the next top-level "," or ")"
func (p *parser) skipElement() error {
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokEOF, tok.isPunct(","), tok.isPunct(")"):
			return nil
		case tok.isPunct("("):
			if err := p.skipParens(); err != nil {
				return err
			}
		default:
			p.pos++
		}
	}
}

func (p *parser) createTable() error {
	if err := p.expect("CREATE"); err != nil {
		return err
	}
	p.acceptSeq("OR", "REPLACE")
	if !p.accept("GLOBAL") {
		p.accept("LOCAL")
	}
	if !p.accept("TEMPORARY") {
		p.accept("TEMP")
	}
	p.accept("UNLOGGED")
	if err := p.expect("TABLE"); err != nil {
		return err
	}
	p.acceptSeq("IF", "NOT", "EXISTS")

	name, err := p.qualifiedName()
	if err != nil {
		return err
	}
	if tok := p.peek(); tok.is("AS") {
		return p.errorf(tok, "CREATE TABLE ... AS is not supported")
	}

	table := schema.NewTable(name)
	p.schema.AddTable(table)
	ctx := parseContext{kind: constructCreateTable, table: table}

	if err := p.expectPunct("("); err != nil {
		return err
	}
	for {
		if err := p.tableElement(ctx); err != nil {
			return err
		}
		if p.acceptPunct(",") {
			continue
		}
		if tok := p.peek(); !tok.isPunct(")") {
			return p.errorf(tok, "unexpected %s in %s", describe(tok), ctx.kind)
		}
		p.pos++
		break
	}

	return p.tableOptions()
}

// tableOptions skips what follows the element list (ENGINE=InnoDB,
// WITHOUT ROWID, WITH (fillfactor=70), PARTITION BY RANGE (a) ...). The
// options carry nothing the schema keeps; only their parentheses are checked.
func (p *parser) tableOptions() error {
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokEOF, tok.isPunct(";"):
			return nil
		case tok.isPunct("("):
			if err := p.skipParens(); err != nil {
				return err
			}
		case tok.isPunct(")"):
			return p.errorf(tok, "unexpected %s after table definition", describe(tok))
		default:
			p.pos++
		}
	}
}

func (p *parser) alterTable() error {
	if err := p.expect("ALTER"); err != nil {
		return err
	}
	if err := p.expect("TABLE"); err != nil {
		return err
	}
	// PostgreSQL writes IF EXISTS before ONLY; accept either order
	only := p.accept("ONLY")
	if p.acceptSeq("IF", "EXISTS") && !only {
		p.accept("ONLY")
	}

	nameTok := p.peek()
	name, err := p.qualifiedName()
	if err != nil {
		return err
	}
	table := p.schema.Table(name)
	if table == nil {
		serr := p.errorf(nameTok, "table %q is not defined", name)
		serr.Kind = KindUnresolvedAlterTarget
		return serr
	}
	ctx := parseContext{kind: constructAlterTable, table: table}

	for {
		if err := p.expect("ADD"); err != nil {
			return err
		}
		if tok := p.peek(); !isTableConstraintStart(tok) {
			return p.errorf(tok, "expected table constraint after ADD")
		}
		if err := p.tableConstraint(ctx); err != nil {
			return err
		}
		if !p.acceptPunct(",") {
			break
		}
	}

	if tok := p.peek(); tok.kind != tokEOF && !tok.isPunct(";") {
		return p.errorf(tok, "unexpected %s in %s", describe(tok), ctx.kind)
	}
	return nil
}

func (p *parser) tableElement(ctx parseContext) error {
	tok := p.peek()
	switch {
	case isTableConstraintStart(tok):
		return p.tableConstraint(ctx)
	case p.isIndexDefinition():
		return p.skipElement()
	case tok.is("LIKE"):
		return p.errorf(tok, "LIKE clauses are not supported")
	default:
		return p.columnDefinition(ctx)
	}
}

func isTableConstraintStart(tok token) bool {
	for _, kw := range []string{"CONSTRAINT", "PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "EXCLUDE"} {
		if tok.is(kw) {
			return true
		}
	}
	return false
}

// isIndexDefinition detects MySQL KEY/INDEX/FULLTEXT/SPATIAL lines without
// mistaking a column named "key" for one
func (p *parser) isIndexDefinition() bool {
	tok := p.peek()
	switch {
	case tok.is("FULLTEXT"), tok.is("SPATIAL"):
		next := p.peekN(1)
		return next.is("KEY") || next.is("INDEX") || next.isPunct("(") || (next.isName() && p.peekN(2).isPunct("("))
	case tok.is("KEY"), tok.is("INDEX"):
		next := p.peekN(1)
		if next.isPunct("(") {
			return true
		}
		// "key varchar(10)" is a column; "KEY idx_name (col)" is an index
		return next.isName() && p.peekN(2).isPunct("(") && p.peekN(3).kind != tokNumber
	}
	return false
}

// pendingColumn holds the effects of a column definition until it is complete
type pendingColumn struct {
	column         *schema.Column
	primaryKey     bool
	foreignKeys    []*schema.ForeignKey
	constraintName string
}

func (p *parser) columnDefinition(ctx parseContext) error {
	name, err := p.identifier()
	if err != nil {
		return err
	}

	pending := &pendingColumn{column: &schema.Column{Name: name}}
	typeName, err := p.typeName()
	if err != nil {
		return err
	}
	pending.column.Type = typeName

	for {
		tok := p.peek()
		if tok.kind == tokEOF || tok.isPunct(",") || tok.isPunct(")") {
			break
		}
		if err := p.columnConstraint(ctx, pending); err != nil {
			return err
		}
	}

	ctx.table.AddColumn(pending.column)
	if pending.primaryKey {
		ctx.table.AddPrimaryKeyColumn(name)
	}
	for _, fk := range pending.foreignKeys {
		ctx.table.AddForeignKey(fk)
	}
	return nil
}

// typeName reads the type tokens of a column, joined by single spaces.
// Argument lists such as (10,2) are not part of the name.
func (p *parser) typeName() (string, error) {
	var parts []string
	for {
		tok := p.peek()
		if tok.kind != tokIdent && tok.kind != tokQuoted {
			break
		}
		if tok.kind == tokIdent && columnKeywords[strings.ToUpper(tok.text)] {
			break
		}
		if tok.is("CHARACTER") && p.peekN(1).is("SET") {
			break
		}
		p.pos++
		parts = append(parts, sqlname.Unquote(tok.text))

		if p.peek().isPunct("(") {
			if err := p.skipParens(); err != nil {
				return "", err
			}
		}
		for p.peek().kind == tokOperator && p.peek().text == "[]" {
			p.pos++
			parts[len(parts)-1] += "[]"
		}
	}
	return strings.Join(parts, " "), nil
}

func (p *parser) columnConstraint(ctx parseContext, pending *pendingColumn) error {
	col := pending.column
	tok := p.next()

	switch strings.ToUpper(tok.text) {
	case "CONSTRAINT":
		name, err := p.identifier()
		if err != nil {
			return err
		}
		pending.constraintName = name
	case "PRIMARY":
		if err := p.expect("KEY"); err != nil {
			return err
		}
		if !p.accept("ASC") {
			p.accept("DESC")
		}
		if err := p.conflictClause(); err != nil {
			return err
		}
		if p.accept("AUTOINCREMENT") {
			col.AutoIncrement = true
		}
		pending.primaryKey = true
	case "NOT":
		switch {
		case p.accept("NULL"):
			col.NotNull = true
			if err := p.conflictClause(); err != nil {
				return err
			}
		case p.peek().is("DEFERRABLE"):
			return p.deferrable(true)
		default:
			return p.errorf(p.peek(), "expected NULL")
		}
	case "NULL":
		col.NotNull = false
	case "UNIQUE":
		p.accept("KEY")
		if err := p.conflictClause(); err != nil {
			return err
		}
		col.Unique = true
	case "CHECK":
		return p.skipParens()
	case "DEFAULT":
		value, err := p.defaultValue()
		if err != nil {
			return err
		}
		col.DefaultValue = &value
	case "COLLATE", "CHARSET":
		_, err := p.identifier()
		return err
	case "CHARACTER":
		if err := p.expect("SET"); err != nil {
			return err
		}
		_, err := p.identifier()
		return err
	case "REFERENCES":
		fk, err := p.references()
		if err != nil {
			return err
		}
		fk.Name = pending.constraintName
		fk.OriginColumns = []string{col.Name}
		pending.foreignKeys = append(pending.foreignKeys, fk)
	case "AUTO_INCREMENT", "AUTOINCREMENT":
		col.AutoIncrement = true
	case "IDENTITY":
		col.AutoIncrement = true
		if p.peek().isPunct("(") {
			return p.skipParens()
		}
	case "GENERATED":
		return p.generated(col)
	case "AS":
		if err := p.skipParens(); err != nil {
			return err
		}
		if !p.accept("STORED") && !p.accept("VIRTUAL") {
			p.accept("PERSISTENT")
		}
	case "COMMENT":
		c := p.next()
		if c.kind != tokString {
			return p.errorf(c, "expected comment text")
		}
		col.Comment = sqlname.Unquote(c.text)
	case "UNSIGNED", "SIGNED", "ZEROFILL":
	case "ON":
		switch {
		case p.accept("UPDATE"):
			_, err := p.defaultValue()
			return err
		case p.accept("CONFLICT"):
			_, err := p.identifier()
			return err
		default:
			return p.errorf(p.peek(), "expected UPDATE or CONFLICT")
		}
	case "DEFERRABLE", "INITIALLY":
		p.pos--
		return p.deferrable(false)
	default:
		return p.errorf(tok, "unexpected %s in column definition", describe(tok))
	}
	return nil
}

// generated handles GENERATED {ALWAYS | BY DEFAULT [ON NULL]} AS {IDENTITY [(...)] | (expr) [STORED|VIRTUAL]}
func (p *parser) generated(col *schema.Column) error {
	if !p.accept("ALWAYS") {
		if !p.acceptSeq("BY", "DEFAULT") {
			return p.errorf(p.peek(), "expected ALWAYS or BY DEFAULT")
		}
		p.acceptSeq("ON", "NULL")
	}
	if err := p.expect("AS"); err != nil {
		return err
	}
	if p.accept("IDENTITY") {
		col.AutoIncrement = true
		if p.peek().isPunct("(") {
			return p.skipParens()
		}
		return nil
	}
	if err := p.skipParens(); err != nil {
		return err
	}
	if !p.accept("STORED") {
		p.accept("VIRTUAL")
	}
	return nil
}

// conflictClause skips SQLite's ON CONFLICT resolution
func (p *parser) conflictClause() error {
	if p.acceptSeq("ON", "CONFLICT") {
		_, err := p.identifier()
		return err
	}
	return nil
}

// deferrable skips [NOT] DEFERRABLE [INITIALLY DEFERRED|IMMEDIATE].
// sawNot tells whether the leading NOT has already been consumed.
func (p *parser) deferrable(sawNot bool) error {
	if sawNot {
		if err := p.expect("DEFERRABLE"); err != nil {
			return err
		}
	} else {
		p.accept("NOT")
		p.accept("DEFERRABLE")
	}
	if p.accept("INITIALLY") {
		_, err := p.identifier()
		return err
	}
	return nil
}

func (p *parser) atDeferrable() bool {
	tok := p.peek()
	return tok.is("DEFERRABLE") || tok.is("INITIALLY") || (tok.is("NOT") && p.peekN(1).is("DEFERRABLE"))
}

// defaultValue reads a default expression and returns its normalized source text
func (p *parser) defaultValue() (string, error) {
	first := p.pos
	start := p.peek()
	if err := p.operand(); err != nil {
		return "", err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || tok.text == "[]" {
			break
		}
		p.pos++
		if tok.text == "::" {
			if _, err := p.typeName(); err != nil {
				return "", err
			}
			continue
		}
		if err := p.operand(); err != nil {
			return "", err
		}
	}

	end := p.tokens[p.pos-1].end
	if p.pos-first == 1 {
		return sqlname.Unquote(start.text), nil
	}
	return p.src[start.start:end], nil
}

func (p *parser) operand() error {
	tok := p.peek()
	switch {
	case tok.isPunct("("):
		return p.skipParens()
	case tok.kind == tokOperator && (tok.text == "-" || tok.text == "+"):
		p.pos++
		return p.operand()
	case tok.kind == tokNumber, tok.kind == tokString:
		p.pos++
	case tok.kind == tokIdent || tok.kind == tokQuoted:
		p.pos++
		if p.peek().isPunct("(") {
			return p.skipParens()
		}
	default:
		return p.errorf(tok, "expected default value")
	}
	return nil
}

// references reads the part of a foreign key after REFERENCES
func (p *parser) references() (*schema.ForeignKey, error) {
	target, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}

	fk := &schema.ForeignKey{TargetTable: target, TargetColumns: []string{}}
	if p.peek().isPunct("(") {
		if fk.TargetColumns, err = p.identList(); err != nil {
			return nil, err
		}
	}

	for {
		switch {
		case p.acceptSeq("ON", "DELETE"):
			if fk.OnDelete, err = p.referentialAction(); err != nil {
				return nil, err
			}
		case p.acceptSeq("ON", "UPDATE"):
			if fk.OnUpdate, err = p.referentialAction(); err != nil {
				return nil, err
			}
		case p.accept("MATCH"):
			if _, err := p.identifier(); err != nil {
				return nil, err
			}
		case p.atDeferrable():
			if err := p.deferrable(false); err != nil {
				return nil, err
			}
		default:
			return fk, nil
		}
	}
}

func (p *parser) referentialAction() (string, error) {
	switch {
	case p.acceptSeq("SET", "NULL"):
		return "SET NULL", nil
	case p.acceptSeq("SET", "DEFAULT"):
		return "SET DEFAULT", nil
	case p.acceptSeq("NO", "ACTION"):
		return "NO ACTION", nil
	case p.accept("CASCADE"):
		return "CASCADE", nil
	case p.accept("RESTRICT"):
		return "RESTRICT", nil
	default:
		return "", p.errorf(p.peek(), "expected referential action")
	}
}

// tableConstraint applies a table-level constraint to ctx.table
func (p *parser) tableConstraint(ctx parseContext) error {
	var name string
	if p.accept("CONSTRAINT") {
		var err error
		if name, err = p.identifier(); err != nil {
			return err
		}
	}

	tok := p.next()
	switch strings.ToUpper(tok.text) {
	case "PRIMARY":
		if err := p.expect("KEY"); err != nil {
			return err
		}
		p.skipIndexName()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		for _, c := range cols {
			ctx.table.AddPrimaryKeyColumn(c)
		}
		if err := p.conflictClause(); err != nil {
			return err
		}
	case "UNIQUE":
		if !p.accept("KEY") {
			p.accept("INDEX")
		}
		p.skipIndexName()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		if len(cols) == 1 {
			if col := ctx.table.Column(cols[0]); col != nil {
				col.Unique = true
			}
		}
		if err := p.conflictClause(); err != nil {
			return err
		}
	case "CHECK":
		if err := p.skipParens(); err != nil {
			return err
		}
		p.acceptSeq("NO", "INHERIT")
	case "FOREIGN":
		if err := p.expect("KEY"); err != nil {
			return err
		}
		p.skipIndexName()
		origin, err := p.identList()
		if err != nil {
			return err
		}
		if err := p.expect("REFERENCES"); err != nil {
			return err
		}
		fk, err := p.references()
		if err != nil {
			return err
		}
		fk.Name = name
		fk.OriginColumns = origin
		ctx.table.AddForeignKey(fk)
	case "EXCLUDE":
		return p.skipElement()
	default:
		return p.errorf(tok, "unexpected %s in %s constraint", describe(tok), ctx.kind)
	}

	if p.peek().is("USING") {
		p.pos++
		if _, err := p.identifier(); err != nil {
			return err
		}
	}
	p.acceptSeq("NOT", "VALID")
	if p.atDeferrable() {
		if err := p.deferrable(false); err != nil {
			return err
		}
	}
	// Oracle constraint states
	for p.accept("ENABLE") || p.accept("DISABLE") || p.accept("VALIDATE") || p.accept("NOVALIDATE") {
	}
	return nil
}

// skipIndexName skips MySQL's optional index name and USING clause before a
// column list
func (p *parser) skipIndexName() {
	if p.peek().is("USING") {
		p.pos += 2
		return
	}
	if p.peek().isName() {
		p.pos++
	}
	if p.peek().is("USING") {
		p.pos += 2
	}
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return "end of statement"
	}
	return fmt.Sprintf("%q", tok.text)
}
