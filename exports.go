package receivables

import "github.com/xraph/receivables/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	JPY  = types.JPY
	Zero = types.Zero
	Sum  = types.Sum
)
