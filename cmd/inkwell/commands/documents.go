package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/docstore"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage stored documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	var docs []docstore.DocumentInfo
	if err := apiGet("/api/v1/documents", &docs); err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(docs)
	}

	if len(docs) == 0 {
		fmt.Println("No documents stored")
		return nil
	}

	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%-24s %-30s %8d bytes %8d words\n",
			doc.ID, title, doc.Size, doc.WordCount)
	}

	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequest(
		http.MethodDelete,
		daemonAddr+"/api/v1/documents/"+args[0], nil,
	)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w",
			daemonAddr, err)
	}
	defer resp.Body.Close()

	if err := decodeEnvelope(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Deleted document %s\n", args[0])
	return nil
}
