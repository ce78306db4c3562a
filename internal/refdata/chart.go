package refdata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Chart is an in-memory arena for one chart of accounts. Accounts are indexed
// by number with parent links resolved once at load time, so ancestor walks
// never hit storage.
type Chart struct {
	UID       uuid.UUID
	Name      string
	Separator string

	accounts map[string]*Account
	ordered  []string
}

// NewChart builds the arena from a flat account list. Account levels and
// parent numbers are derived from the number segments when the source left
// them empty ("1101-02-03" hangs below "1101-02").
func NewChart(uid uuid.UUID, name, separator string, accounts []Account) (*Chart, error) {
	if separator == "" {
		separator = "-"
	}
	c := &Chart{
		UID:       uid,
		Name:      name,
		Separator: separator,
		accounts:  make(map[string]*Account, len(accounts)),
		ordered:   make([]string, 0, len(accounts)),
	}
	for i := range accounts {
		acct := accounts[i]
		if acct.Number == "" {
			return nil, fmt.Errorf("refdata: account %q without number", acct.Name)
		}
		if _, exists := c.accounts[acct.Number]; exists {
			return nil, fmt.Errorf("refdata: duplicated account number %s", acct.Number)
		}
		if acct.Level == 0 {
			acct.Level = strings.Count(acct.Number, separator) + 1
		}
		if acct.ParentNumber == "" && acct.Level > 1 {
			if idx := strings.LastIndex(acct.Number, separator); idx > 0 {
				acct.ParentNumber = acct.Number[:idx]
			}
		}
		if acct.GroupNumber == "" {
			acct.GroupNumber = groupNumberFor(acct.Number)
		}
		c.accounts[acct.Number] = &acct
		c.ordered = append(c.ordered, acct.Number)
	}
	sort.Strings(c.ordered)
	return c, nil
}

func groupNumberFor(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) >= 2 {
		return digits[:2]
	}
	return digits
}

// Account returns the account registered under number.
func (c *Chart) Account(number string) (*Account, bool) {
	acct, ok := c.accounts[number]
	return acct, ok
}

// Parent returns the parent of the account registered under number.
func (c *Chart) Parent(number string) (*Account, bool) {
	acct, ok := c.accounts[number]
	if !ok || !acct.HasParent() {
		return nil, false
	}
	return c.Account(acct.ParentNumber)
}

// Ancestors walks the parent chain bottom-up and returns every ancestor of
// the account, nearest first. The walk stops at the first account that has
// no registered parent.
func (c *Chart) Ancestors(number string) []*Account {
	var chain []*Account
	current, ok := c.accounts[number]
	if !ok {
		return chain
	}
	for current.HasParent() {
		parent, ok := c.Account(current.ParentNumber)
		if !ok {
			break
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain
}

// Accounts returns every account ordered by number.
func (c *Chart) Accounts() []*Account {
	list := make([]*Account, 0, len(c.ordered))
	for _, number := range c.ordered {
		list = append(list, c.accounts[number])
	}
	return list
}

// Len returns the number of accounts in the arena.
func (c *Chart) Len() int {
	return len(c.accounts)
}
