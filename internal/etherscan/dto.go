package etherscan

// Explorer responses carry every field as a string.

type TxDTO struct {
	Hash        string `mapstructure:"hash"`
	BlockNumber string `mapstructure:"blockNumber"`
	TimeStamp   string `mapstructure:"timeStamp"`
	From        string `mapstructure:"from"`
	To          string `mapstructure:"to"`
	Value       string `mapstructure:"value"`
	GasUsed     string `mapstructure:"gasUsed"`
	GasPrice    string `mapstructure:"gasPrice"`
	IsError     string `mapstructure:"isError"`
}

type InternalDTO struct {
	Hash        string `mapstructure:"hash"`
	BlockNumber string `mapstructure:"blockNumber"`
	TimeStamp   string `mapstructure:"timeStamp"`
	From        string `mapstructure:"from"`
	To          string `mapstructure:"to"`
	Value       string `mapstructure:"value"`
	TraceID     string `mapstructure:"traceId"`
}

type TokenDTO struct {
	Hash            string `mapstructure:"hash"`
	BlockNumber     string `mapstructure:"blockNumber"`
	TimeStamp       string `mapstructure:"timeStamp"`
	From            string `mapstructure:"from"`
	To              string `mapstructure:"to"`
	Value           string `mapstructure:"value"`
	TokenDecimal    string `mapstructure:"tokenDecimal"`
	TokenSymbol     string `mapstructure:"tokenSymbol"`
	ContractAddress string `mapstructure:"contractAddress"`
	LogIndex        string `mapstructure:"logIndex"`
}

// response is the envelope shared by all account actions. Result is a list
// on success and a diagnostic string otherwise.
type response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
}
