package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yz4230/rolling/internal/usecase"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the EKS cluster the pipeline deploys to",
}

var clusterProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the cluster, its node group, IAM roles and the image repository",
	Long: `Creates whatever is missing: IAM roles for the cluster, its nodes, an admin
and the deployment stage; the EKS cluster and a managed node group; the ECR
repository. Both roles are mapped to system:masters in aws-auth. Existing
resources are left as they are, so the command can be re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, injector, err := newInjector()
		if err != nil {
			return err
		}
		provision, err := do.Invoke[usecase.ProvisionClusterUsecase](injector)
		if err != nil {
			return err
		}
		ref, err := provision.Execute(logContext(cmd.Context()))
		if err != nil {
			return err
		}
		log.Info().
			Str("cluster", ref.Name).
			Str("endpoint", ref.Endpoint).
			Str("deployment_role", ref.DeploymentRoleARN).
			Str("repository", ref.RepositoryURI).
			Msg("cluster ready")
		return writeJSON(cmd, ref)
	},
}

func init() {
	clusterCmd.AddCommand(clusterProvisionCmd)
}
