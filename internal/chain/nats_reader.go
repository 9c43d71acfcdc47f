package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// State-query subjects served by the upstream decoder. Requests and
// replies are JSON over core NATS request-reply.
const (
	SubjectContractState = "optx.state.contract"
	SubjectOptionData    = "optx.state.option"
	SubjectPoolState     = "optx.state.pool"
	SubjectSqrtPrice     = "optx.state.price"
)

// NATSReader resolves contract state through the decoder service that
// also publishes the event stream, so state answers come from the same
// chain view that produced the events. Registry membership is decided
// locally from the configured allow-list; registry rows and option
// terms are immutable once written, so both are cached forever.
type NATSReader struct {
	nc      *nats.Conn
	timeout time.Duration

	registered map[string]bool
	contracts  map[string]ContractState
	options    map[string]OptionData
}

func NewNATSReader(nc *nats.Conn, registry []string, timeout time.Duration) *NATSReader {
	registered := make(map[string]bool, len(registry))
	for _, addr := range registry {
		registered[strings.ToLower(addr)] = true
	}
	return &NATSReader{
		nc:         nc,
		timeout:    timeout,
		registered: registered,
		contracts:  make(map[string]ContractState),
		options:    make(map[string]OptionData),
	}
}

func (r *NATSReader) IsRegistered(addr string) bool {
	return r.registered[strings.ToLower(addr)]
}

type contractStateRequest struct {
	Address string `json:"address"`
}

func (r *NATSReader) ContractState(addr string) (ContractState, error) {
	key := strings.ToLower(addr)
	if cs, ok := r.contracts[key]; ok {
		return cs, nil
	}

	var cs ContractState
	if err := r.request(SubjectContractState, contractStateRequest{Address: addr}, &cs); err != nil {
		return ContractState{}, fmt.Errorf("contract state %s: %w", addr, err)
	}
	r.contracts[key] = cs
	return cs, nil
}

type optionDataRequest struct {
	Address  string `json:"address"`
	OptionID int64  `json:"optionId"`
}

func (r *NATSReader) OptionData(addr string, optionID int64) (OptionData, error) {
	key := fmt.Sprintf("%s/%d", strings.ToLower(addr), optionID)
	if od, ok := r.options[key]; ok {
		return od, nil
	}

	var od OptionData
	if err := r.request(SubjectOptionData, optionDataRequest{Address: addr, OptionID: optionID}, &od); err != nil {
		return OptionData{}, fmt.Errorf("option data %s/%d: %w", addr, optionID, err)
	}
	if od.Strike == nil || od.Amount == nil {
		return OptionData{}, fmt.Errorf("option data %s/%d: incomplete reply", addr, optionID)
	}
	r.options[key] = od
	return od, nil
}

// PoolState is never cached: balances move on every pool event.
func (r *NATSReader) PoolState(addr string) (PoolState, error) {
	var ps PoolState
	if err := r.request(SubjectPoolState, contractStateRequest{Address: addr}, &ps); err != nil {
		return PoolState{}, fmt.Errorf("pool state %s: %w", addr, err)
	}
	return ps, nil
}

type sqrtPriceReply struct {
	SqrtPriceX96 *big.Int `json:"sqrtPriceX96"`
}

func (r *NATSReader) SqrtPriceX96() (*big.Int, error) {
	var reply sqrtPriceReply
	if err := r.request(SubjectSqrtPrice, struct{}{}, &reply); err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}
	if reply.SqrtPriceX96 == nil {
		return nil, fmt.Errorf("sqrt price: empty reply")
	}
	return reply.SqrtPriceX96, nil
}

func (r *NATSReader) request(subject string, req, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	msg, err := r.nc.Request(subject, payload, r.timeout)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	return nil
}
