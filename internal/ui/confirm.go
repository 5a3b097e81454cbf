package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/carbonfi/carbonfi/internal/wallet"
)

// Confirm asks a yes/no question on out and reads the answer from in.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// TxApprover prompts in the terminal before the keystore wallet signs,
// standing in for the browser wallet's confirmation popup.
func TxApprover(in io.Reader, out io.Writer) wallet.Approver {
	return wallet.ApproverFunc(func(ctx context.Context, req wallet.ApprovalRequest) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		pairs := [][2]string{{"Method", req.Method}, {"Chain", fmt.Sprint(req.ChainID)}, {"From", req.From.Hex()}}
		if req.Summary != "" {
			pairs = append(pairs, [2]string{"Details", req.Summary})
		}
		fmt.Fprintln(out, KeyValueBlock("Wallet request", pairs))
		return Confirm(in, out, "Approve?"), nil
	})
}
