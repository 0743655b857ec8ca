package ofx

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{name: "valid bank statement", ofxData: sampleBankOFX, expectedCount: 3},
		{name: "valid credit card statement", ofxData: sampleCreditCardOFX, expectedCount: 2},
		{name: "invalid OFX data", ofxData: "not valid OFX", expectedError: true},
		{name: "empty OFX", ofxData: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := NewParser(nil).ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, stmt.Transactions, tt.expectedCount)
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	stmt, err := NewParser(nil).ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 3)
	assert.Equal(t, []string{"1234567890"}, stmt.Accounts)

	tx1 := stmt.Transactions[0]
	assert.Equal(t, transactionID("1234567890", "2024011501"), tx1.ID)
	assert.Equal(t, "STARBUCKS STORE #1234", tx1.OriginalDescription)
	assert.Equal(t, "STARBUCKS STORE #1234", tx1.Description)
	assert.Equal(t, int64(-2550), tx1.Amount)
	assert.Equal(t, "1234567890", tx1.AccountID)
	assert.Equal(t, 2024, tx1.Date.Year())
	assert.Equal(t, time.January, tx1.Date.Month())
	assert.Equal(t, 15, tx1.Date.Day())
	require.NotNil(t, tx1.NormalizedMerchant)
	assert.NotContains(t, *tx1.NormalizedMerchant, "1234")
	assert.Nil(t, tx1.CategoryID)
	assert.Nil(t, tx1.CategorizationSource)

	tx2 := stmt.Transactions[1]
	assert.Equal(t, "Whole Foods Market", tx2.Description)
	assert.Equal(t, int64(-12500), tx2.Amount)
	require.NotNil(t, tx2.NormalizedMerchant)
	assert.Equal(t, "Whole Foods Market", *tx2.NormalizedMerchant)

	tx3 := stmt.Transactions[2]
	assert.Equal(t, "CHECK #1234", tx3.Description)
	assert.Equal(t, int64(-50000), tx3.Amount)
}

func TestParseCreditCardTransactions(t *testing.T) {
	stmt, err := NewParser(nil).ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 2)
	assert.Equal(t, []string{"4111111111111111"}, stmt.Accounts)

	tx1 := stmt.Transactions[0]
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", tx1.Description)
	assert.Equal(t, int64(-4599), tx1.Amount)
	assert.Equal(t, "4111111111111111", tx1.AccountID)

	tx2 := stmt.Transactions[1]
	assert.Equal(t, int64(-1500), tx2.Amount)
	require.NotNil(t, tx2.NormalizedMerchant)
	assert.Equal(t, "Netflix", *tx2.NormalizedMerchant)
}

func TestParseFile_StableIDs(t *testing.T) {
	parser := NewParser(nil)

	first, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	second, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	for i := range first.Transactions {
		assert.Equal(t, first.Transactions[i].ID, second.Transactions[i].ID)
	}
	assert.NotEqual(t, transactionID("acct-a", "1"), transactionID("acct-b", "1"))
}

func TestParseFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(nil).ParseFile(ctx, strings.NewReader(sampleBankOFX))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConvertTransaction(t *testing.T) {
	tests := []struct {
		name         string
		tx           ofxgo.Transaction
		wantDesc     string
		wantOriginal string
		wantMerchant string
		wantAmount   int64
	}{
		{
			name:         "payee wins for merchant",
			tx:           ofxgo.Transaction{Name: "SQ *BLUE BOTTLE", Payee: &ofxgo.Payee{Name: "Blue Bottle"}, TrnAmt: amount("-4.75")},
			wantDesc:     "SQ *BLUE BOTTLE",
			wantOriginal: "SQ *BLUE BOTTLE",
			wantMerchant: "Blue Bottle",
			wantAmount:   -475,
		},
		{
			name:         "generic name uses memo",
			tx:           ofxgo.Transaction{Name: "PURCHASE", Memo: "TARGET 00012345", TrnAmt: amount("-19.99")},
			wantDesc:     "TARGET 00012345",
			wantOriginal: "TARGET 00012345",
			wantMerchant: "Target",
			wantAmount:   -1999,
		},
		{
			name:         "memo is appended",
			tx:           ofxgo.Transaction{Name: "DIRECT DEPOSIT", Memo: "ACME PAYROLL", TrnAmt: amount("2500.00")},
			wantDesc:     "DIRECT DEPOSIT ACME PAYROLL",
			wantOriginal: "DIRECT DEPOSIT ACME PAYROLL",
			wantAmount:   250000,
		},
		{
			name:         "card prefix and date stripped",
			tx:           ofxgo.Transaction{Name: "POS PURCHASE 01/15 SHELL OIL", TrnAmt: amount("-40.005")},
			wantDesc:     "SHELL OIL",
			wantOriginal: "POS PURCHASE 01/15 SHELL OIL",
			wantAmount:   -4001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := convertTransaction(tt.tx, "acct")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDesc, txn.Description)
			assert.Equal(t, tt.wantOriginal, txn.OriginalDescription)
			assert.Equal(t, tt.wantAmount, txn.Amount)
			if tt.wantMerchant != "" {
				require.NotNil(t, txn.NormalizedMerchant)
				assert.Equal(t, tt.wantMerchant, *txn.NormalizedMerchant)
			}
		})
	}
}

func amount(s string) ofxgo.Amount {
	var a ofxgo.Amount
	if _, ok := a.SetString(s); !ok {
		panic("bad amount " + s)
	}
	return a
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"12.34", 1234},
		{"-12.34", -1234},
		{"0.005", 1},
		{"-0.005", -1},
		{"1000000", 100000000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, ok := new(big.Rat).SetString(tt.in)
			require.True(t, ok)
			got, err := toMinorUnits(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("purchase"))
	assert.True(t, isGenericDescription("POS TRANSACTION"))
	assert.False(t, isGenericDescription("PURCHASE AT TARGET"))
}
