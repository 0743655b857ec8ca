// Package ofx imports transactions from OFX and QFX bank statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/normalize"
	"github.com/google/uuid"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	leadingDate   = regexp.MustCompile(`^\d{2}/\d{2}\s+`)

	// transactionNamespace scopes the deterministic IDs of imported rows.
	transactionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fintrak:ofx"))

	minorUnits = big.NewRat(100, 1)
)

// Statement is the result of parsing one file.
type Statement struct {
	Accounts     []string
	Transactions []model.Transaction
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Some SGML exports drop the closing bracket of bare opening tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX file. Transactions get deterministic IDs
// derived from the account and FITID, so importing the same file twice
// yields the same rows.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	stmt := &Statement{}
	seen := make(map[string]bool)
	addAccount := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			stmt.Accounts = append(stmt.Accounts, id)
		}
	}

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bank, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		accountID := string(bank.BankAcctFrom.AcctID)
		addAccount(accountID)
		stmt.Transactions = append(stmt.Transactions, p.convertList(bank.BankTranList, accountID)...)
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		accountID := string(card.CCAcctFrom.AcctID)
		addAccount(accountID)
		stmt.Transactions = append(stmt.Transactions, p.convertList(card.BankTranList, accountID)...)
	}

	p.logger.Info("Parsed OFX file",
		"transactions", len(stmt.Transactions),
		"accounts", len(stmt.Accounts))

	return stmt, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID string) []model.Transaction {
	if list == nil {
		return nil
	}
	txns := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		txn, err := convertTransaction(ofxTx, accountID)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction",
				"fitid", string(ofxTx.FiTID),
				"account", accountID,
				"error", err)
			continue
		}
		txns = append(txns, txn)
	}
	return txns
}

// convertTransaction maps one OFX transaction onto the model. The amount
// keeps its sign, so debits are negative.
func convertTransaction(ofxTx ofxgo.Transaction, accountID string) (model.Transaction, error) {
	amount, err := toMinorUnits(&ofxTx.TrnAmt.Rat)
	if err != nil {
		return model.Transaction{}, err
	}

	original := strings.TrimSpace(string(ofxTx.Name))
	if memo := strings.TrimSpace(string(ofxTx.Memo)); memo != "" {
		if original == "" || isGenericDescription(original) {
			original = memo
		} else {
			original += " " + memo
		}
	}

	txn := model.Transaction{
		ID:                  transactionID(accountID, string(ofxTx.FiTID)),
		AccountID:           accountID,
		Date:                ofxTx.DtPosted.Time,
		Description:         cleanDescription(original),
		OriginalDescription: original,
		Amount:              amount,
	}

	merchant := ""
	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		merchant = normalize.Merchant(string(ofxTx.Payee.Name)).Merchant
	}
	if merchant == "" {
		merchant = normalize.Merchant(txn.Description).Merchant
	}
	if merchant != "" {
		txn.NormalizedMerchant = &merchant
	}

	return txn, nil
}

func transactionID(accountID, fitID string) string {
	return uuid.NewSHA1(transactionNamespace, []byte(accountID+"/"+fitID)).String()
}

// toMinorUnits converts a decimal amount to cents, rounding half away from
// zero.
func toMinorUnits(amount *big.Rat) (int64, error) {
	cents := new(big.Rat).Mul(amount, minorUnits)
	n, err := strconv.ParseInt(cents.FloatString(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %s out of range: %w", amount.FloatString(2), err)
	}
	return n, nil
}

// cleanDescription strips card-network prefixes and a leading MM/DD date.
func cleanDescription(name string) string {
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	upper := strings.ToUpper(name)
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return strings.TrimSpace(leadingDate.ReplaceAllString(strings.TrimSpace(name), ""))
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
