// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/utils/formatting"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/dispatch"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/events"
	"github.com/ava-labs/xwallet/keys"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
	"github.com/ava-labs/xwallet/vm"
)

// WalletName is the JSON-RPC namespace of the approval surface.
const WalletName = "wallet"

const (
	MsgAccountNotFound   = "Account not found."
	MsgInvalidPayload    = "Invalid payload. payload should be object."
	MsgUnknownRequest    = "Request not found."
	MsgConnectFailed     = "Failed to connect site. Please try again."
	MsgMnemonicExists    = "Wallet already exist."
	MsgInvalidMnemonic   = "Invalid secret phrase."
	MsgSignMessageFailed = "Failed to sign message."
)

// WalletService is the API of the approval surface. Failures carry the same
// user-facing messages pages receive.
type WalletService struct {
	w   *Wallet
	log log.Logger
}

func NewWalletService(w *Wallet) *WalletService {
	return &WalletService{w: w, log: log.New("module", "wallet-service")}
}

// fail logs err and returns its user-facing form.
func (s *WalletService) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	s.log.Debug("wallet request failed", "op", op, "err", err)
	return errors.New(errs.Message(err))
}

// VMArgs selects the VM an operation runs on. An empty ChainID means the
// stored active network.
type VMArgs struct {
	Type      chains.Family `json:"type"`
	PublicKey string        `json:"publicKey"`
	ChainID   string        `json:"chainId,omitempty"`
}

func (s *WalletService) vm(ctx context.Context, args VMArgs) (vm.VM, error) {
	if _, err := chains.ParseFamily(string(args.Type)); err != nil {
		return nil, errs.Validationf("%s", err)
	}
	if args.ChainID != "" {
		return s.w.Factory.New(args.Type, args.PublicKey, args.ChainID)
	}

	var active chains.Chain
	found, err := s.w.Store.Get(storage.ActiveNetwork, &active)
	if err != nil {
		return nil, err
	}
	if !found {
		return s.w.Factory.New(args.Type, args.PublicKey, "")
	}
	if _, ok := s.w.Factory.Config().Registry.BySymbol(args.Type, active.Symbol); !ok {
		return s.w.Factory.New(args.Type, args.PublicKey, "")
	}
	v, err := s.w.Factory.New(args.Type, args.PublicKey, active.ID())
	if err != nil {
		return nil, err
	}
	// Applies the stored environment on top of the registry entry.
	return v, v.UseNetwork(ctx, active)
}

// account looks publicKey up with its private key.
func (s *WalletService) account(publicKey string) (*accounts.Account, error) {
	var found *accounts.Account
	err := s.w.Store.View(func(tx *storage.Tx) error {
		c, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		if a, ok := c.Lookup(publicKey); ok {
			found = &a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errs.Validationf(MsgAccountNotFound)
	}
	return found, nil
}

// publicAccount is an account without its private key.
func publicAccount(a accounts.Account) accounts.Account {
	a.PrivateKey = ""
	return a
}

type RequestsReply struct {
	Requests []approval.Request `json:"requests"`
}

// ListRequests lists the page requests waiting for the user.
func (s *WalletService) ListRequests(_ *http.Request, _ *struct{}, reply *RequestsReply) error {
	reply.Requests = s.w.Broker.Outstanding()
	return nil
}

type TransactionsReply struct {
	Transactions []*txs.Transaction `json:"transactions"`
}

func (s *WalletService) ListPending(_ *http.Request, _ *struct{}, reply *TransactionsReply) error {
	pending, err := s.w.Dispatcher.Pending()
	reply.Transactions = pending
	return s.fail("listPending", err)
}

type IDArgs struct {
	ID string `json:"id"`
}

// Approve dispatches a pending transaction.
func (s *WalletService) Approve(r *http.Request, args *IDArgs, reply *dispatch.Result) error {
	result, err := s.w.Dispatcher.Approve(r.Context(), args.ID)
	if err != nil {
		return s.fail("approve", err)
	}
	*reply = *result
	return nil
}

func (s *WalletService) Reject(r *http.Request, args *IDArgs, _ *api.EmptyReply) error {
	return s.fail("reject", s.w.Dispatcher.Reject(r.Context(), args.ID))
}

type CloseWindowArgs struct {
	RequestID string `json:"requestId"`
	Response
}

type DeliveredReply struct {
	Delivered bool `json:"delivered"`
}

// CloseWindow answers a request with the response the approval surface
// built.
func (s *WalletService) CloseWindow(_ *http.Request, args *CloseWindowArgs, reply *DeliveredReply) error {
	reply.Delivered = s.w.Broker.Resolve(args.RequestID, args.Response)
	return nil
}

type RequestIDArgs struct {
	RequestID string `json:"requestId"`
}

// WindowClosed answers a request as closed by the user.
func (s *WalletService) WindowClosed(_ *http.Request, args *RequestIDArgs, _ *api.EmptyReply) error {
	return s.fail("windowClosed", s.w.Broker.WindowClosed(args.RequestID))
}

func (s *WalletService) request(id, kind string) (approval.Request, error) {
	r, ok := s.w.Broker.Get(id)
	if !ok || r.Kind != kind {
		return approval.Request{}, errs.Validationf(MsgUnknownRequest)
	}
	return r, nil
}

type ApproveConnectArgs struct {
	RequestID string   `json:"requestId"`
	Accounts  []string `json:"accounts"`
	providers.Attrib
}

// ApproveConnect grants accounts to the requesting site.
func (s *WalletService) ApproveConnect(_ *http.Request, args *ApproveConnectArgs, _ *api.EmptyReply) error {
	r, err := s.request(args.RequestID, approval.KindConnect)
	if err != nil {
		return s.fail("approveConnect", err)
	}

	attrib := args.Attrib
	if req, ok := r.Data.(ConnectRequest); ok {
		if attrib.ClusterType == "" {
			attrib.ClusterType = req.ClusterType
		}
		if attrib.Endpoint == "" {
			attrib.Endpoint = req.Endpoint
		}
	}
	if attrib.ClusterType == "" {
		attrib.ClusterType = providers.ClusterMainnet
	}
	if attrib.Endpoint == "" {
		attrib.Endpoint = s.w.l1x().RPC
	}

	site := sites.Site{URL: r.Site, FavIcon: r.FavIcon, L1XProviderConfig: &attrib}
	if err := s.w.Sites.Connect(site, args.Accounts); err != nil {
		s.w.Broker.Fail(r.ID, errs.Validationf(MsgConnectFailed))
		return s.fail("approveConnect", err)
	}
	s.w.Broker.Succeed(r.ID, map[string]bool{"isConnected": true})
	return nil
}

type SignatureReply struct {
	Signature string `json:"signature"`
}

// ApproveSignMessage signs the requested message with the claimed account.
func (s *WalletService) ApproveSignMessage(r *http.Request, args *RequestIDArgs, reply *SignatureReply) error {
	req, err := s.request(args.RequestID, approval.KindSignMessage)
	if err != nil {
		return s.fail("approveSignMessage", err)
	}
	signature, err := s.signMessage(r.Context(), req)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown {
			err = errs.Validationf(MsgSignMessageFailed)
		}
		s.w.Broker.Fail(req.ID, err)
		return s.fail("approveSignMessage", err)
	}
	s.w.Broker.Succeed(req.ID, signature)
	reply.Signature = signature
	return nil
}

func (s *WalletService) signMessage(ctx context.Context, req approval.Request) (string, error) {
	msg, ok := req.Data.(SignMessageRequest)
	if !ok {
		return "", errs.Validationf(MsgUnknownRequest)
	}
	a, err := s.account(req.From)
	if err != nil {
		return "", err
	}
	v, err := s.w.Factory.New(a.Type, a.PublicKey, "")
	if err != nil {
		return "", err
	}
	return v.SignMessage(ctx, msg.Message, a.PrivateKey)
}

// ApproveSignPayload signs the staged payload. The page receives the
// payload fields plus hex signature and publicKey.
func (s *WalletService) ApproveSignPayload(_ *http.Request, args *RequestIDArgs, reply *json.RawMessage) error {
	req, err := s.request(args.RequestID, approval.KindSignPayload)
	if err != nil {
		return s.fail("approveSignPayload", err)
	}
	signed, err := s.signPayload(req)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown {
			err = errs.Validationf(MsgSignMessageFailed)
		}
		s.w.Broker.Fail(req.ID, err)
		return s.fail("approveSignPayload", err)
	}
	if err := s.w.Store.Remove(storage.PayloadToSign); err != nil {
		s.log.Warn("failed to clear staged payload", "err", err)
	}
	s.w.Broker.Succeed(req.ID, signed)
	*reply = signed
	return nil
}

func (s *WalletService) signPayload(req approval.Request) (json.RawMessage, error) {
	var staged PayloadToSign
	found, err := s.w.Store.Get(storage.PayloadToSign, &staged)
	if err != nil {
		return nil, err
	}
	if !found || staged.RequestID != req.ID {
		return nil, errs.Validationf(MsgUnknownRequest)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(staged.Payload, &fields); err != nil || fields == nil {
		return nil, errs.Validationf(MsgInvalidPayload)
	}

	a, err := s.account(staged.From)
	if err != nil {
		return nil, err
	}
	if a.Type != chains.L1X {
		return nil, errs.Validationf(errs.MsgOnlyL1XAccounts)
	}
	key, err := keys.ParseSecp256k1(a.PrivateKey)
	if err != nil {
		return nil, errs.Validationf(vm.MsgInvalidPrivateKey)
	}
	sig, publicKey, err := providers.SignL1XPayload(staged.Payload, key)
	if err != nil {
		return nil, err
	}
	if fields["signature"], err = formatting.Encode(formatting.Hex, sig); err != nil {
		return nil, err
	}
	if fields["publicKey"], err = formatting.Encode(formatting.Hex, publicKey); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

type SitesReply struct {
	Sites []sites.Site `json:"sites"`
}

func (s *WalletService) ListSites(_ *http.Request, _ *struct{}, reply *SitesReply) error {
	all, err := s.w.Sites.All()
	reply.Sites = all
	return s.fail("listSites", err)
}

type DisconnectAccountArgs struct {
	Site      string `json:"site"`
	PublicKey string `json:"publicKey"`
}

// DisconnectAccount revokes one account from a site.
func (s *WalletService) DisconnectAccount(_ *http.Request, args *DisconnectAccountArgs, _ *api.EmptyReply) error {
	return s.fail("disconnectAccount", s.w.Sites.Disconnect(args.Site, args.PublicKey))
}

type MnemonicReply struct {
	Mnemonic string `json:"mnemonic"`
}

// GenerateMnemonic creates and stores a new secret phrase. It fails if one
// is already stored.
func (s *WalletService) GenerateMnemonic(_ *http.Request, _ *struct{}, reply *MnemonicReply) error {
	mnemonic, err := keys.NewMnemonic()
	if err != nil {
		return s.fail("generateMnemonic", err)
	}
	if err := s.storeMnemonic(mnemonic); err != nil {
		return s.fail("generateMnemonic", err)
	}
	reply.Mnemonic = mnemonic
	return nil
}

type MnemonicArgs struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *WalletService) ImportMnemonic(_ *http.Request, args *MnemonicArgs, _ *api.EmptyReply) error {
	mnemonic := strings.Join(strings.Fields(args.Mnemonic), " ")
	if _, err := keys.Seed(mnemonic); err != nil {
		return s.fail("importMnemonic", errs.Validationf(MsgInvalidMnemonic))
	}
	return s.fail("importMnemonic", s.storeMnemonic(mnemonic))
}

func (s *WalletService) storeMnemonic(mnemonic string) error {
	return s.w.Store.Update(func(tx *storage.Tx) error {
		var existing string
		if _, err := tx.Get(storage.Mnemonic, &existing); err != nil {
			return err
		}
		if existing != "" {
			return errs.Validationf(MsgMnemonicExists)
		}
		return tx.Set(storage.Mnemonic, mnemonic)
	})
}

type CreateAccountArgs struct {
	Type chains.Family `json:"type"`
	Name string        `json:"name"`
}

type ImportPrivateKeyArgs struct {
	Type       chains.Family `json:"type"`
	PrivateKey string        `json:"privateKey"`
	Name       string        `json:"name"`
}

type AccountReply struct {
	Account accounts.Account `json:"account"`
}

func (s *WalletService) CreateAccount(r *http.Request, args *CreateAccountArgs, reply *AccountReply) error {
	v, err := s.vm(r.Context(), VMArgs{Type: args.Type})
	if err != nil {
		return s.fail("createAccount", err)
	}
	a, err := v.CreateAccount(r.Context(), args.Name)
	if err != nil {
		return s.fail("createAccount", err)
	}
	s.accountChanged(a.Type)
	reply.Account = publicAccount(*a)
	return nil
}

func (s *WalletService) ImportPrivateKey(r *http.Request, args *ImportPrivateKeyArgs, reply *AccountReply) error {
	v, err := s.vm(r.Context(), VMArgs{Type: args.Type})
	if err != nil {
		return s.fail("importPrivateKey", err)
	}
	a, err := v.ImportPrivateKey(r.Context(), args.PrivateKey, args.Name)
	if err != nil {
		return s.fail("importPrivateKey", err)
	}
	s.accountChanged(a.Type)
	reply.Account = publicAccount(*a)
	return nil
}

type RenameAccountArgs struct {
	VMArgs
	Name string `json:"name"`
}

func (s *WalletService) RenameAccount(r *http.Request, args *RenameAccountArgs, _ *api.EmptyReply) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("renameAccount", err)
	}
	return s.fail("renameAccount", v.UpdateAccountName(r.Context(), args.PublicKey, args.Name))
}

type AccountsReply struct {
	L1X    []accounts.Account `json:"L1X"`
	EVM    []accounts.Account `json:"EVM"`
	NonEVM []accounts.Account `json:"NON-EVM"`
	Active *accounts.Account  `json:"ACTIVE"`
}

// ListWalletAccounts lists every account without private keys.
func (s *WalletService) ListWalletAccounts(_ *http.Request, _ *struct{}, reply *AccountsReply) error {
	err := s.w.Store.View(func(tx *storage.Tx) error {
		c, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		strip := func(in []accounts.Account) []accounts.Account {
			out := make([]accounts.Account, len(in))
			for i, a := range in {
				out[i] = publicAccount(a)
			}
			return out
		}
		reply.L1X = strip(c.L1X)
		reply.EVM = strip(c.EVM)
		reply.NonEVM = strip(c.NonEVM)
		if c.Active != nil {
			active := publicAccount(*c.Active)
			reply.Active = &active
		}
		return nil
	})
	return s.fail("listWalletAccounts", err)
}

type SetActiveAccountArgs struct {
	Type      chains.Family `json:"type"`
	PublicKey string        `json:"publicKey"`
}

func (s *WalletService) SetActiveAccount(_ *http.Request, args *SetActiveAccountArgs, _ *api.EmptyReply) error {
	err := s.w.Store.Update(func(tx *storage.Tx) error {
		c, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		if err := c.SetActive(args.Type, args.PublicKey); err != nil {
			return err
		}
		return c.Save(tx)
	})
	if err != nil {
		return s.fail("setActiveAccount", err)
	}
	s.accountChanged(args.Type)
	return nil
}

func (s *WalletService) accountChanged(family chains.Family) {
	if s.w.Events != nil {
		s.w.Events.Emit(events.AccountChanged, map[string]chains.Family{"type": family})
	}
}

type ChangeNetworkArgs struct {
	VMArgs
	Symbol string `json:"symbol"`
}

type NetworkReply struct {
	Network chains.Chain `json:"network"`
}

func (s *WalletService) ChangeNetwork(r *http.Request, args *ChangeNetworkArgs, reply *NetworkReply) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("changeNetwork", err)
	}
	if err := v.ChangeActiveNetwork(r.Context(), chains.Chain{Symbol: args.Symbol}); err != nil {
		return s.fail("changeNetwork", err)
	}
	reply.Network = v.ActiveNetwork()
	return nil
}

type EnvironmentArgs struct {
	RPC string `json:"rpc"`
}

// SetEnvironment stores the RPC of the environment networks are overlaid
// with. An empty RPC clears it.
func (s *WalletService) SetEnvironment(_ *http.Request, args *EnvironmentArgs, _ *api.EmptyReply) error {
	if args.RPC == "" {
		return s.fail("setEnvironment", s.w.Store.Remove(storage.ActiveEnvironment))
	}
	return s.fail("setEnvironment", s.w.Store.Set(storage.ActiveEnvironment, args.RPC))
}

type TokenArgs struct {
	VMArgs
	Address string `json:"address"`
}

type TokensReply struct {
	Tokens []chains.Token `json:"tokens"`
}

func (s *WalletService) ImportToken(r *http.Request, args *TokenArgs, _ *api.EmptyReply) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("importToken", err)
	}
	return s.fail("importToken", v.ImportToken(r.Context(), args.Address))
}

func (s *WalletService) ListTokens(r *http.Request, args *VMArgs, reply *TokensReply) error {
	v, err := s.vm(r.Context(), *args)
	if err != nil {
		return s.fail("listTokens", err)
	}
	tokens, err := v.ListToken(r.Context())
	reply.Tokens = tokens
	return s.fail("listTokens", err)
}

type NFTArgs struct {
	VMArgs
	Collection string `json:"collectionAddress"`
	TokenID    string `json:"tokenId"`
}

type NFTsReply struct {
	NFTs []chains.NFT `json:"nfts"`
}

func (s *WalletService) ImportNFT(r *http.Request, args *NFTArgs, _ *api.EmptyReply) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("importNFT", err)
	}
	return s.fail("importNFT", v.ImportNFT(r.Context(), args.Collection, args.TokenID, args.PublicKey))
}

func (s *WalletService) ListNFTs(r *http.Request, args *VMArgs, reply *NFTsReply) error {
	v, err := s.vm(r.Context(), *args)
	if err != nil {
		return s.fail("listNFTs", err)
	}
	nfts, err := v.ListNFT(r.Context())
	reply.NFTs = nfts
	return s.fail("listNFTs", err)
}

func (s *WalletService) ListTransactions(r *http.Request, args *VMArgs, reply *TransactionsReply) error {
	v, err := s.vm(r.Context(), *args)
	if err != nil {
		return s.fail("listTransactions", err)
	}
	history, err := v.ListTransactions(r.Context())
	reply.Transactions = history
	return s.fail("listTransactions", err)
}

type InitiateTransactionArgs struct {
	Transaction *txs.Transaction `json:"transaction"`
}

// InitiateTransaction queues a transaction built by the wallet itself. It
// is dispatched once approved.
func (s *WalletService) InitiateTransaction(r *http.Request, args *InitiateTransactionArgs, reply *IDArgs) error {
	if args.Transaction == nil || args.Transaction.Payload == nil {
		return s.fail("initiateTransaction", errs.Validationf(MsgInvalidRequestData))
	}
	common := args.Transaction.Common
	common.Source = txs.Extension
	common.Timestamp = s.w.now()
	common.Hash = ""
	common.RequestID = ""

	v, err := s.vm(r.Context(), VMArgs{Type: common.NetworkType, PublicKey: common.From, ChainID: common.ChainID})
	if err != nil {
		return s.fail("initiateTransaction", err)
	}
	network := v.ActiveNetwork()
	common.ChainID = network.ID()
	if common.RPC == "" {
		common.RPC = network.RPC
	}

	t := txs.New(common, args.Transaction.Payload)
	if err := t.Validate(); err != nil {
		return s.fail("initiateTransaction", err)
	}
	if err := v.InitiateTransaction(r.Context(), t); err != nil {
		return s.fail("initiateTransaction", err)
	}
	reply.ID = t.ID
	return nil
}

type EstimateFeeArgs struct {
	VMArgs
	Hint *vm.FeeHint `json:"hint,omitempty"`
}

type FeeReply struct {
	Fee string `json:"fee"`
}

func (s *WalletService) EstimateFee(r *http.Request, args *EstimateFeeArgs, reply *FeeReply) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("estimateFee", err)
	}
	fee, err := v.EstimateFee(r.Context(), nil, args.Hint)
	reply.Fee = fee
	return s.fail("estimateFee", err)
}

type ReceiptArgs struct {
	VMArgs
	Hash string `json:"hash"`
}

func (s *WalletService) TransactionReceipt(r *http.Request, args *ReceiptArgs, reply *vm.Receipt) error {
	v, err := s.vm(r.Context(), args.VMArgs)
	if err != nil {
		return s.fail("transactionReceipt", err)
	}
	receipt, err := v.TransactionReceipt(r.Context(), args.Hash, nil)
	if err != nil {
		return s.fail("transactionReceipt", err)
	}
	*reply = *receipt
	return nil
}
