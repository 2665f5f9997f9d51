// Program replayer re-broadcasts a previously collected QSO log as UDP
// contactinfo datagrams, for load testing the collector against a full
// contest's worth of traffic. It reads the collector's own SQLite schema and
// plays the contacts back in timestamp order at a configurable rate.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"qsolog/qso"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

const payloadTemplate = `<?xml version="1.0"?>
<contactinfo>
	<contestname>FD</contestname>
	<contestnr>1</contestnr>
	<timestamp>%s</timestamp>
	<mycall>%s</mycall>
	<band>%s</band>
	<rxfreq>%d</rxfreq>
	<txfreq>%d</txfreq>
	<operator>%s</operator>
	<mode>%s</mode>
	<call>%s</call>
	<snt>%s</snt>
	<rcv>%s</rcv>
	<exchange1>%s</exchange1>
	<section>%s</section>
	<comment>%s</comment>
	<points>1</points>
	<radionr>1</radionr>
	<IsOriginal>True</IsOriginal>
	<NetBiosName>%s</NetBiosName>
	<IsRunQSO>0</IsRunQSO>
</contactinfo>`

func main() {
	dbPath := flag.String("db", "data/qso_log.db", "path to a collector QSO log database")
	target := flag.String("target", "127.0.0.1:12060", "address to send datagrams to")
	rate := flag.Float64("rate", 4, "datagrams per second")
	rewriteTS := flag.Bool("now", false, "stamp each contact with the current time instead of the logged one")
	flag.Parse()

	if *rate <= 0 {
		log.Fatalf("rate must be positive, got %v", *rate)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Error opening database %s: %v", *dbPath, err)
	}
	defer db.Close()

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("Error resolving target %s: %v", *target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("Error opening socket: %v", err)
	}
	defer conn.Close()

	rows, err := db.Query(`
		select qso_log.timestamp, mycall, band_id, mode_id, operator.name, station.name,
			rx_freq, tx_freq, callsign, rst_sent, rst_recv, exchange, section, comment
		from qso_log
		join operator on operator.id = operator_id
		join station on station.id = station_id
		order by qso_log.timestamp`)
	if err != nil {
		log.Fatalf("Error reading log: %v", err)
	}
	defer rows.Close()

	log.Printf("Replaying %s to %s at %.1f/sec...", *dbPath, *target, *rate)
	interval := time.Duration(float64(time.Second) / *rate)
	sent := 0
	for rows.Next() {
		var (
			ts                                       int64
			bandID, modeID                           int
			rxFreq, txFreq                           int64
			myCall, operator, station, call          string
			rstSent, rstRecv, exch, section, comment sql.NullString
		)
		if err := rows.Scan(&ts, &myCall, &bandID, &modeID, &operator, &station,
			&rxFreq, &txFreq, &call, &rstSent, &rstRecv, &exch, &section, &comment); err != nil {
			log.Fatalf("Error scanning row: %v", err)
		}

		when := time.Unix(ts, 0).UTC()
		if *rewriteTS {
			when = time.Now().UTC()
		}
		payload := fmt.Sprintf(payloadTemplate,
			when.Format(qso.TimestampLayout),
			escape(myCall),
			qso.BandLabel(bandID),
			rxFreq/10, // stored in Hz, wire carries tens of Hz
			txFreq/10,
			escape(operator),
			qso.ModeName(modeID),
			escape(call),
			escape(rstSent.String),
			escape(rstRecv.String),
			escape(exch.String),
			escape(section.String),
			escape(comment.String),
			escape(station))

		if _, err := conn.Write([]byte(payload)); err != nil {
			log.Fatalf("Error sending datagram: %v", err)
		}
		sent++
		if sent%100 == 0 {
			log.Printf("sent %s contacts, last timestamp %s", humanize.Comma(int64(sent)), when.Format(qso.TimestampLayout))
		}
		time.Sleep(interval)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Error iterating log: %v", err)
	}
	log.Printf("Replay done: %s contacts sent", humanize.Comma(int64(sent)))
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return escaper.Replace(s)
}
