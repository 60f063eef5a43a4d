// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/certen/contract-executor/pkg/batchesmanager"
	"github.com/certen/contract-executor/pkg/batchexecution"
	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/config"
	"github.com/certen/contract-executor/pkg/executor"
	"github.com/certen/contract-executor/pkg/executor/mocks"
	"github.com/certen/contract-executor/pkg/metrics"
	"github.com/certen/contract-executor/pkg/opinion"
	"github.com/certen/contract-executor/pkg/poex"
	"github.com/certen/contract-executor/pkg/rpc"
	"github.com/certen/contract-executor/pkg/storagejournal"
	"github.com/certen/contract-executor/pkg/vmpool"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("🚀 Starting Certen contract-executor")

	var (
		listenAddr   = flag.String("listen-addr", "", "gossip transport listen address (overrides MESSENGER_ADDR env var)")
		contractsDir = flag.String("contracts", "./contracts", "directory of per-contract YAML config files")
		dev          = flag.Bool("dev", false, "relax configuration validation for a single local executor exercising the mocks")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if *listenAddr != "" {
		log.Printf("📋 CLI flag override: messenger listen address %s", *listenAddr)
		cfg.MessengerAddr = *listenAddr
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("❌ Configuration invalid: %v", err)
		}
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("❌ Configuration invalid: %v", err)
		}
	}

	log.Println("🔑 [Phase 1] Loading executor identity...")
	signingKey, err := loadOrGenerateEd25519Key(cfg.ExecutorKeyPath)
	if err != nil {
		log.Fatalf("❌ [Phase 1] Failed to load executor key: %v", err)
	}
	var selfExecutorKey calltypes.ExecutorKey
	copy(selfExecutorKey[:], signingKey.Public().(ed25519.PublicKey))
	log.Println("✅ [Phase 1] Executor identity ready")

	poexSecret, err := loadOrGeneratePoexSecret(cfg.PoexKeyPath)
	if err != nil {
		log.Fatalf("❌ [Phase 1] Failed to load PoEx key: %v", err)
	}
	selfPoexPubKey := poex.PublicKey(poexSecret)

	log.Println("📊 [Phase 2] Registering metrics...")
	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("❌ [Phase 2] Failed to register metrics: %v", err)
	}
	log.Println("✅ [Phase 2] Metrics registered")

	var journal *storagejournal.Client
	if cfg.PersistJournal {
		log.Println("🗄️ [Phase 3] Connecting to storage journal database...")
		journal, err = storagejournal.NewClient(context.Background(), storagejournal.Config{
			DatabaseURL:     cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			log.Printf("⚠️ [Phase 3] Storage journal connection failed - running in DEGRADED mode: %v", err)
			journal = nil
		} else {
			log.Println("✅ [Phase 3] Storage journal connected")
		}
	} else {
		log.Println("⚠️ [Phase 3] Storage journal disabled (PERSIST_JOURNAL=false)")
	}

	log.Println("🛠️ [Phase 4] Wiring virtual machine and storage...")
	vm, err := vmpool.New(mocks.NewVirtualMachine(), cfg.VMPoolSize)
	if err != nil {
		log.Fatalf("❌ [Phase 4] Failed to build VM pool: %v", err)
	}
	storage := mocks.NewStorage(calltypes.StorageState{})
	log.Println("✅ [Phase 4] Virtual machine and storage ready (mocks.VirtualMachine/Storage; swap in a production backend here)")

	log.Println("📡 [Phase 5] Starting gossip transport...")
	hub := rpc.NewHub()
	grpcServer := grpc.NewServer()
	rpc.RegisterMessengerServer(grpcServer, hub)
	lis, err := net.Listen("tcp", cfg.MessengerAddr)
	if err != nil {
		log.Fatalf("❌ [Phase 5] Failed to listen on %s: %v", cfg.MessengerAddr, err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gossip server stopped: %v", err)
		}
	}()

	peers := make([]*rpc.Client, 0, len(cfg.PeerAddrs))
	for _, addr := range cfg.PeerAddrs {
		cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatalf("❌ [Phase 5] Failed to dial peer %s: %v", addr, err)
		}
		peers = append(peers, rpc.NewClient(cc))
	}
	messenger := rpc.NewFanoutMessenger(hub, peers...)
	log.Printf("✅ [Phase 5] Gossip transport listening on %s with %d configured peers", cfg.MessengerAddr, len(peers))

	log.Println("⛓️ [Phase 6] Wiring chain client...")
	chainClient := newPublishingChainClient(mocks.NewChainClient())
	log.Println("✅ [Phase 6] Chain client ready (mocks.ChainClient; swap in a production backend here)")

	log.Printf("📜 [Phase 7] Loading contract configs from %s...", *contractsDir)
	entries, err := os.ReadDir(*contractsDir)
	if err != nil {
		log.Fatalf("❌ [Phase 7] Failed to read contracts directory: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := *contractsDir + "/" + entry.Name()
		contractCfg, err := config.LoadContractConfig(path)
		if err != nil {
			log.Printf("⚠️ [Phase 7] Skipping %s: %v", path, err)
			continue
		}
		if err := contractCfg.Validate(); err != nil {
			log.Printf("⚠️ [Phase 7] Skipping %s: %v", path, err)
			continue
		}

		runner, err := buildContractRunner(cfg, contractCfg, selfExecutorKey, selfPoexPubKey, signingKey, poexSecret, vm, storage, messenger, chainClient, m)
		if err != nil {
			log.Printf("⚠️ [Phase 7] Skipping %s: %v", path, err)
			continue
		}
		loaded++

		wg.Add(1)
		go func(r *ContractRunner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				log.Printf("contract %s: runner exited: %v", r.contractKey, err)
			}
		}(runner)
	}
	log.Printf("✅ [Phase 7] %d contract(s) loaded and running", loaded)

	log.Println("📈 [Phase 8] Starting metrics and health endpoints...")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: healthMux}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server stopped: %v", err)
		}
	}()
	log.Printf("✅ [Phase 8] Metrics on %s, health on %s", cfg.MetricsAddr, cfg.HealthAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down contract-executor...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
	vm.Release()
	if journal != nil {
		journal.Close()
	}

	wg.Wait()
	log.Printf("✅ contract-executor stopped")
}

// buildContractRunner assembles the batchexecution.Config and
// batchesmanager.Manager a single contract's ContractRunner needs from its
// YAML overlay, the executor-wide defaults, and the collaborators shared
// across every contract this process serves.
func buildContractRunner(
	cfg *config.ExecutorConfig,
	contractCfg *config.ContractConfig,
	selfExecutorKey calltypes.ExecutorKey,
	selfPoexPubKey poex.Point,
	signingKey ed25519.PrivateKey,
	poexSecret fr.Element,
	vm executor.VirtualMachine,
	storage executor.Storage,
	messenger executor.Messenger,
	chainClient *publishingChainClient,
	m *metrics.Metrics,
) (*ContractRunner, error) {
	contractKeyRaw, err := calltypes.ParseKey(contractCfg.ContractKeyHex)
	if err != nil {
		return nil, err
	}
	contractKey := calltypes.ContractKey(contractKeyRaw)

	driveKeyRaw, err := calltypes.ParseKey(contractCfg.DriveKeyHex)
	if err != nil {
		return nil, err
	}
	driveKey := calltypes.DriveKey(driveKeyRaw)

	executorKeys := make([]calltypes.ExecutorKey, 0, len(contractCfg.Cohort)+1)
	executorKeys = append(executorKeys, selfExecutorKey)
	peerPoex := make(map[calltypes.ExecutorKey]*poex.ProofOfExecution)
	peerPoexPublicKey := make(map[calltypes.ExecutorKey]poex.Point)
	peerExecutorInfo := make(map[calltypes.ExecutorKey]opinion.ExecutorInfo)

	for _, member := range contractCfg.Cohort {
		keyRaw, err := calltypes.ParseKey(member.ExecutorKeyHex)
		if err != nil {
			return nil, err
		}
		key := calltypes.ExecutorKey(keyRaw)
		if key == selfExecutorKey {
			continue
		}

		pubKey, err := poex.ParsePointHex(member.PoexPublicKeyHex)
		if err != nil {
			return nil, err
		}

		executorKeys = append(executorKeys, key)
		peerPoex[key] = poex.New(pubKey)
		peerPoexPublicKey[key] = pubKey
		peerExecutorInfo[key] = opinion.ExecutorInfo{}
	}

	manager, err := batchesmanager.New(&batchesmanager.Config{
		Logger:         log.New(os.Stdout, "[BatchesManager:"+contractKey.String()[:8]+"] ", log.LstdFlags),
		Metrics:        m,
		ContractLabel:  contractKey.String(),
		Evaluator:      buildAutomaticEvaluator(vm, storage, driveKey),
		BackoffInitial: 200 * time.Millisecond,
		BackoffMax:     30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	taskConfig := &batchexecution.Config{
		Logger:       log.New(os.Stdout, "[BatchExecutionTask:"+contractKey.String()[:8]+"] ", log.LstdFlags),
		Metrics:      m,
		VM:           vm,
		Storage:      storage,
		Messenger:    messenger,
		ChainClient:  chainClient,
		EventHandler: mocks.NewEventHandler(),

		ContractKey: contractKey,
		DriveKey:    driveKey,

		SelfExecutorKey: selfExecutorKey,
		SigningKey:      signingKey,
		ExecutorKeys:    executorKeys,

		Threshold: &opinion.ThresholdConfig{
			Numerator:    contractCfg.Threshold.Numerator,
			Denominator:  contractCfg.Threshold.Denominator,
			MinExecutors: contractCfg.Threshold.MinExecutors,
		},

		SelfPoex:          poex.New(selfPoexPubKey),
		PeerPoex:          peerPoex,
		PeerPoexPublicKey: peerPoexPublicKey,
		PeerExecutorInfo:  peerExecutorInfo,

		ExecutionMultiplier: cfg.ExecutionPaymentToGasMultiplier,
		DownloadMultiplier:  cfg.DownloadPaymentToGasMultiplier,

		ShareOpinionTimeout:        cfg.ShareOpinionTimeout,
		SuccessfulExecutionDelay:   cfg.SuccessfulExecutionDelay,
		UnsuccessfulExecutionDelay: contractCfg.UnsuccessfulApprovalDelay.Duration(),
		VMFailureBackoff:           200 * time.Millisecond,
		VMMaxRetries:               3,
	}

	return &ContractRunner{
		logger:      log.New(os.Stdout, "[ContractRunner:"+contractKey.String()[:8]+"] ", log.LstdFlags),
		contractKey: contractKey,
		manager:     manager,
		messenger:   messenger,
		chainClient: chainClient,
		taskConfig:  taskConfig,
	}, nil
}
