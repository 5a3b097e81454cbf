package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/carbonfi/carbonfi/internal/chain"
	"github.com/carbonfi/carbonfi/internal/config"
	"github.com/carbonfi/carbonfi/internal/contract"
	"github.com/carbonfi/carbonfi/internal/metrics"
	"github.com/carbonfi/carbonfi/internal/refresh"
	"github.com/carbonfi/carbonfi/internal/rpc"
	"github.com/carbonfi/carbonfi/internal/ui"
	"github.com/carbonfi/carbonfi/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AppOptions are the per-invocation overrides from global flags.
type AppOptions struct {
	Chain       string
	Wallet      string
	AutoApprove bool
}

// App is the wired core for one CLI invocation.
type App struct {
	Config      *config.Config
	Log         *zap.Logger
	Metrics     *metrics.Collector
	Deployments *contract.Deployments
	Registry    *chain.Registry
	Pool        *rpc.Pool
	Wallets     *wallet.Manager
	State       *config.StateStore
	Provider    *wallet.KeystoreProvider
	Connector   *wallet.Connector
	Resolver    *contract.Resolver
	Refresher   *refresh.Refresher

	// Network is the chain this invocation targets.
	Network *chain.Network
	// Wallet is the selected local wallet, nil when none is configured.
	Wallet *wallet.Wallet
}

// NewApp wires config, registry, RPC pool, wallet and contract layers. It
// does not touch the network.
func NewApp(cfg *config.Config, log *zap.Logger, opts AppOptions) (*App, error) {
	a := &App{
		Config:      cfg,
		Log:         log,
		Metrics:     metrics.New(),
		Deployments: contract.NewDeployments(cfg.ContractsPath()),
		State:       cfg.NewStateStore(),
	}
	if err := a.Deployments.Load(); err != nil {
		return nil, fmt.Errorf("loading deployments: %w", err)
	}

	var err error
	a.Registry, err = chain.NewRegistry(
		chain.WithOverrides(a.Deployments.Overrides()),
		chain.WithExtraRPCs(cfg.CustomRPCs),
	)
	if err != nil {
		return nil, err
	}
	if opts.Chain != "" {
		a.Network, err = a.Registry.Resolve(opts.Chain)
	} else {
		a.Network, err = a.Registry.Lookup(cfg.DefaultChainID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrUnknownNetwork, err)
	}

	algo, err := rpc.ParseAlgorithm(cfg.RPCAlgorithm)
	if err != nil {
		return nil, err
	}
	a.Pool = rpc.NewPool(a.Registry, algo, log)

	ks, err := wallet.OpenKeystore(cfg.KeyringDir())
	if err != nil {
		return nil, err
	}
	a.Wallets = wallet.NewManager(wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())), wallet.WithKeystore(ks))
	if a.Wallet, err = a.selectWallet(opts.Wallet); err != nil {
		return nil, err
	}

	var signer *wallet.Signer
	if a.Wallet != nil && a.Wallet.CanSign() {
		signer = wallet.NewSigner(a.Wallet, ks)
	}
	approver := ui.TxApprover(os.Stdin, os.Stderr)
	if opts.AutoApprove {
		approver = wallet.AutoApprove
	}
	a.Provider = wallet.NewKeystoreProvider(signer, a.Network.ChainID, a.Pool, a.Registry, approver, log)

	kind, err := wallet.ParseKind(cfg.PreferredWallet)
	if err != nil {
		return nil, err
	}
	connOpts := []wallet.ConnectorOption{
		wallet.WithPreferences(a.State),
		wallet.WithPreferredKind(kind),
		wallet.WithLogger(log),
		wallet.WithMetrics(a.Metrics),
	}
	if cfg.AdminAddress != "" {
		if !common.IsHexAddress(cfg.AdminAddress) {
			return nil, fmt.Errorf("admin_address %q is not an address", cfg.AdminAddress)
		}
		connOpts = append(connOpts, wallet.WithAdmin(common.HexToAddress(cfg.AdminAddress)))
	}
	a.Connector = wallet.NewConnector(wallet.StaticEnvironment{a.Provider}, a.Registry, connOpts...)

	a.Resolver = contract.NewResolver(a.Registry, contract.NodeBackends(a.Pool), a.Connector,
		contract.WithLogger(log), contract.WithMetrics(a.Metrics))
	a.Refresher = a.newRefresher(true)
	return a, nil
}

func (a *App) selectWallet(name string) (*wallet.Wallet, error) {
	if name == "" {
		name = a.Config.DefaultWallet
	}
	if name != "" {
		return a.Wallets.Get(name)
	}
	w, err := a.Wallets.Default()
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return nil, nil
	}
	return w, err
}

// newRefresher builds a refresher. A live refresher discards results once
// the connected account or chain moves on; a detached one reads any address.
func (a *App) newRefresher(live bool) *refresh.Refresher {
	opts := []refresh.Option{
		refresh.WithLogger(a.Log),
		refresh.WithMetrics(a.Metrics),
		refresh.WithRateLimit(a.Config.RPCRateLimit, 4),
	}
	if live {
		opts = append(opts, refresh.WithLive(a.Connector))
	}
	return refresh.New(a.Registry, a.Resolver, contract.NodeBackends(a.Pool), opts...)
}

// Close releases the resolver subscription and node connections.
func (a *App) Close() {
	a.Resolver.Close()
	a.Pool.Close()
}

// Reconnect restores a session approved by an earlier invocation without
// prompting. The result is Disconnected when there is nothing to restore.
func (a *App) Reconnect(ctx context.Context) (wallet.ConnectionState, error) {
	if a.State.AutoConnect() {
		a.Provider.Grant()
	}
	return a.Connector.AutoConnect(ctx)
}

// Session returns a Connected state on the target network, prompting for
// access and switching chains as needed.
func (a *App) Session(ctx context.Context) (wallet.ConnectionState, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	st, err := a.Reconnect(ctx)
	if err != nil {
		return st, err
	}
	if st.Status != wallet.StatusConnected && st.Status != wallet.StatusWrongNetwork {
		if st, err = a.Connector.Connect(ctx); err != nil && !errors.Is(err, wallet.ErrUnsupportedNetwork) {
			return st, err
		}
	}
	if st.ChainID != a.Network.ChainID {
		if err := a.Connector.SwitchChain(ctx, a.Network.ChainID); err != nil {
			return st, err
		}
		st = a.Connector.State()
	}
	if st.Status != wallet.StatusConnected {
		return st, fmt.Errorf("%w: wallet is %s", wallet.ErrNotConnected, st.Status)
	}
	return st, nil
}

// Account is the address balances are shown for: the connected account,
// else the selected wallet.
func (a *App) Account(ctx context.Context) (common.Address, error) {
	st, err := a.Reconnect(ctx)
	if err == nil && st.Status == wallet.StatusConnected {
		return st.Account, nil
	}
	if a.Wallet != nil {
		return a.Wallet.Address, nil
	}
	return common.Address{}, fmt.Errorf("%w: no wallet selected", wallet.ErrNotConnected)
}

// ReadHandle resolves a read-only handle on the target network.
func (a *App) ReadHandle(ctx context.Context, name chain.ContractName) (*contract.Handle, error) {
	return a.Resolver.Resolve(ctx, name, contract.Options{ChainID: a.Network.ChainID, VerifyDeployment: true})
}

// SignerHandle connects if needed and resolves a handle that can write.
func (a *App) SignerHandle(ctx context.Context, name chain.ContractName) (*contract.Handle, error) {
	if _, err := a.Session(ctx); err != nil {
		return nil, err
	}
	return a.Resolver.Resolve(ctx, name, contract.Options{ChainID: a.Network.ChainID, WantsSigner: true, VerifyDeployment: true})
}

// TokenDecimals reads the CFI token's decimals on the target network.
func (a *App) TokenDecimals(ctx context.Context) (int, error) {
	h, err := a.ReadHandle(ctx, chain.ContractToken)
	if err != nil {
		return 0, err
	}
	tok, err := contract.AsToken(h)
	if err != nil {
		return 0, err
	}
	dec, err := tok.Decimals(ctx)
	if err != nil {
		return 0, err
	}
	return int(dec), nil
}

// TokenAmount converts a user amount such as "12.5" to token base units.
func (a *App) TokenAmount(ctx context.Context, amount string) (*big.Int, error) {
	dec, err := a.TokenDecimals(ctx)
	if err != nil {
		return nil, err
	}
	return chain.ToBaseUnits(amount, dec)
}

// Await waits for tx, prints the outcome and refreshes balances once it is
// confirmed.
func (a *App) Await(ctx context.Context, h *contract.Handle, tx *contract.PendingTx) error {
	fmt.Println(ui.Meta("sent " + tx.Hash.Hex()))
	if url := a.Network.TxURL(tx.Hash.Hex()); url != "" {
		fmt.Println(ui.Meta(url))
	}

	spin := ui.NewSpinner("Waiting for confirmation...")
	spin.Start()
	res, err := h.Wait(ctx, tx, contract.WaitOptions{Timeout: a.Config.TxWaitTimeout(), Metrics: a.Metrics})
	spin.Stop()
	if err != nil {
		if res != nil && res.Status == contract.TxPending {
			fmt.Println(ui.Warn(fmt.Sprintf("%s.%s still pending", tx.Contract, tx.Method)))
		}
		return err
	}

	fmt.Println(ui.Success(fmt.Sprintf("%s.%s confirmed in block %s", tx.Contract, tx.Method, res.Receipt.BlockNumber)))
	snap, rerr := a.Refresher.Refresh(ctx, tx.From, tx.ChainID)
	switch {
	case rerr == nil:
		fmt.Println(ui.RenderSnapshot(snap))
	case errors.Is(rerr, refresh.ErrStaleResult), errors.Is(rerr, refresh.ErrCoalesced):
		a.Log.Debug("post-transaction refresh discarded", zap.Error(rerr))
	default:
		a.Log.Warn("post-transaction refresh failed", zap.Error(rerr))
	}
	return nil
}
