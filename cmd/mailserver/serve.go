package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Muszic/SMTP-Email-Server/pkg/imapserver"
	"github.com/Muszic/SMTP-Email-Server/pkg/mailapi"
	"github.com/Muszic/SMTP-Email-Server/pkg/smtpserver"
)

var (
	smtpHost   string
	smtpPort   int
	smtpDomain string

	imapPort int
	apiPort  int

	notifyRedisAddr     string
	notifyRedisPassword string
	notifyRedisDB       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SMTP listener, IMAP server and HTTP API",
	RunE:  runServe,
}

func init() {
	smtpDefaults := smtpserver.DefaultConfig()
	imapDefaults := imapserver.DefaultConfig()
	apiDefaults := mailapi.DefaultConfig()

	serveCmd.Flags().StringVar(&smtpHost, "smtp-host",
		envString("SMTP_HOST", smtpDefaults.Host), "SMTP listen host")
	serveCmd.Flags().IntVar(&smtpPort, "smtp-port",
		envInt("SMTP_PORT", smtpDefaults.Port), "SMTP listen port")
	serveCmd.Flags().StringVar(&smtpDomain, "domain",
		envString("SMTP_DOMAIN", smtpDefaults.Domain), "SMTP server domain")
	serveCmd.Flags().IntVar(&imapPort, "imap-port",
		envInt("IMAP_PORT", imapDefaults.Port), "IMAP listen port")
	serveCmd.Flags().IntVar(&apiPort, "api-port",
		envInt("API_PORT", apiDefaults.Port), "HTTP API listen port")
	serveCmd.Flags().StringVar(&notifyRedisAddr, "notify-redis-addr",
		envString("NOTIFY_REDIS_ADDR", ""), "Redis address for delivery notifications (disabled when empty)")
	serveCmd.Flags().StringVar(&notifyRedisPassword, "notify-redis-password",
		envString("NOTIFY_REDIS_PASSWORD", ""), "Redis password for delivery notifications")
	serveCmd.Flags().IntVar(&notifyRedisDB, "notify-redis-db",
		envInt("NOTIFY_REDIS_DB", 0), "Redis database for delivery notifications")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	service, err := newService()
	if err != nil {
		return err
	}
	defer service.Close()

	smtpConfig := smtpserver.DefaultConfig()
	smtpConfig.Host = smtpHost
	smtpConfig.Port = smtpPort
	smtpConfig.Domain = smtpDomain
	smtpConfig.NotifyRedisAddr = notifyRedisAddr
	smtpConfig.NotifyRedisPassword = notifyRedisPassword
	smtpConfig.NotifyRedisDB = notifyRedisDB

	smtpServer, err := smtpserver.NewServer(smtpConfig, service.Active())
	if err != nil {
		return err
	}

	imapConfig := imapserver.DefaultConfig()
	imapConfig.Host = smtpHost
	imapConfig.Port = imapPort
	imapServer := imapserver.NewServer(imapConfig, service)

	apiConfig := mailapi.DefaultConfig()
	apiConfig.Host = smtpHost
	apiConfig.Port = apiPort
	apiServer := mailapi.NewServer(apiConfig, service)

	go func() {
		if err := smtpServer.Start(); err != nil {
			log.Fatalf("Failed to start SMTP server: %v", err)
		}
	}()
	go func() {
		if err := imapServer.Start(); err != nil {
			log.Fatalf("Failed to start IMAP server: %v", err)
		}
	}()
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("Shutting down mail server...")
	if err := apiServer.Stop(); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}
	if err := imapServer.Close(); err != nil {
		log.Printf("Error stopping IMAP server: %v", err)
	}
	if err := smtpServer.Stop(); err != nil {
		log.Printf("Error stopping SMTP server: %v", err)
	}
	return nil
}
