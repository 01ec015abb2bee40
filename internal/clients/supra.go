package clients

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

const defaultRPCTimeout = 15 * time.Second

// ErrAccountNotRegistered means the target account exists but has never
// registered the coin store for the asset, so balance reads return 404.
var ErrAccountNotRegistered = errors.New("account is not registered for the asset")

// SupraClient talks to a Supra RPC node over its REST API. It covers the
// narrow surface this agent needs: account reads, gas estimation and
// signed automation registration/cancellation submission.
type SupraClient struct {
	baseURL         string
	registryAddress string
	senderAddress   string
	key             ed25519.PrivateKey
	httpClient      *http.Client
}

// NewSupraClient builds a client for the node at baseURL. registryAddress is
// the deployed automation registry module; privateKeyHex signs submissions.
func NewSupraClient(baseURL, registryAddress, senderAddress, privateKeyHex string) (*SupraClient, error) {
	seed, err := hexutil.Decode(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &SupraClient{
		baseURL:         baseURL,
		registryAddress: registryAddress,
		senderAddress:   senderAddress,
		key:             ed25519.NewKeyFromSeed(seed),
		httpClient:      &http.Client{Timeout: defaultRPCTimeout},
	}, nil
}

// SenderAddress returns the account this client signs for.
func (c *SupraClient) SenderAddress() string { return c.senderAddress }

type accountResponse struct {
	SequenceNumber string `json:"sequence_number"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type gasPriceResponse struct {
	MeanGasPrice uint64 `json:"mean_gas_price"`
}

// submitResponse tolerates the hash arriving under any of the field names
// different node versions use.
type submitResponse struct {
	TxnHash         string `json:"txn_hash"`
	Hash            string `json:"hash"`
	TransactionHash string `json:"transaction_hash"`
}

func (r submitResponse) txHash() string {
	switch {
	case r.TxnHash != "":
		return r.TxnHash
	case r.Hash != "":
		return r.Hash
	default:
		return r.TransactionHash
	}
}

// AccountBalance returns the account's asset balance in micro-units.
func (c *SupraClient) AccountBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp balanceResponse
	err := c.get(ctx, fmt.Sprintf("/rpc/v1/accounts/%s/coin", address), &resp)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse balance %q", resp.Balance)
	}
	return balance, nil
}

// AccountSequenceNumber returns the next sequence number for the account.
func (c *SupraClient) AccountSequenceNumber(ctx context.Context, address string) (uint64, error) {
	var resp accountResponse
	if err := c.get(ctx, fmt.Sprintf("/rpc/v1/accounts/%s", address), &resp); err != nil {
		return 0, err
	}
	var seq uint64
	if _, err := fmt.Sscanf(resp.SequenceNumber, "%d", &seq); err != nil {
		return 0, errors.Wrapf(err, "parse sequence number %q", resp.SequenceNumber)
	}
	return seq, nil
}

// EstimateGasPrice queries the node's fee estimation endpoint.
func (c *SupraClient) EstimateGasPrice(ctx context.Context) (uint64, error) {
	var resp gasPriceResponse
	if err := c.get(ctx, "/rpc/v1/transactions/estimate_gas_price", &resp); err != nil {
		return 0, err
	}
	if resp.MeanGasPrice == 0 {
		return 0, errors.New("node returned zero gas price estimate")
	}
	return resp.MeanGasPrice, nil
}

// AutomationRegistration is a signed request to register an auto top-up task
// watching TargetAddress.
type AutomationRegistration struct {
	Sender           string `json:"sender"`
	SequenceNumber   uint64 `json:"sequence_number"`
	Function         string `json:"function"`
	TargetAddress    string `json:"target_address"`
	MaxGasAmount     uint64 `json:"max_gas_amount"`
	GasPriceCap      uint64 `json:"gas_price_cap"`
	AutomationFeeCap uint64 `json:"automation_fee_cap"`
	ExpirationSecs   int64  `json:"expiration_timestamp_secs"`
}

// SubmitAutomationRegistration signs and submits the registration, returning
// the transaction hash reported by the node.
func (c *SupraClient) SubmitAutomationRegistration(ctx context.Context, reg AutomationRegistration) (string, error) {
	reg.Sender = c.senderAddress
	reg.Function = c.registryAddress + "::auto_topup::register"
	return c.submit(ctx, reg)
}

// AutomationCancellation is a signed request to tear down a registered task.
type AutomationCancellation struct {
	Sender         string `json:"sender"`
	SequenceNumber uint64 `json:"sequence_number"`
	Function       string `json:"function"`
	TaskID         uint64 `json:"task_id"`
}

// SubmitAutomationCancellation signs and submits the cancellation.
func (c *SupraClient) SubmitAutomationCancellation(ctx context.Context, cancel AutomationCancellation) (string, error) {
	cancel.Sender = c.senderAddress
	cancel.Function = c.registryAddress + "::auto_topup::cancel_task"
	return c.submit(ctx, cancel)
}

// submit signs the canonical JSON encoding of the payload with sha3-256 +
// ed25519 and posts it to the node.
func (c *SupraClient) submit(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encode payload")
	}

	digest := sha3.Sum256(raw)
	signature := ed25519.Sign(c.key, digest[:])

	body, err := json.Marshal(map[string]any{
		"payload":    json.RawMessage(raw),
		"signature":  hexutil.Encode(signature),
		"public_key": hexutil.Encode(c.key.Public().(ed25519.PublicKey)),
	})
	if err != nil {
		return "", errors.Wrap(err, "encode submission")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/v1/transactions/submit", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "submit transaction")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read submission response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", errors.Errorf("node returned status %d: %s", resp.StatusCode, string(data))
	}

	var result submitResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "decode submission response")
	}
	hash := result.txHash()
	if hash == "" {
		return "", errors.Errorf("no transaction hash in submission response: %s", string(data))
	}
	return hash, nil
}

func (c *SupraClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrAccountNotRegistered
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s returned status %d: %s", path, resp.StatusCode, string(data))
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decode %s response", path)
}
