// Package qtfaststart implements functions for optimizing Quicktime movie files
// for network streaming.
//
// Quicktime files are composed of atoms, data structures that can contain audio
// or video tracks, subtitles, metadata, and even other atoms.  One atom, called
// "moov", contains general information about the movie, such as the number of
// tracks and where in the file those tracks can be found.  The "moov" atom is
// traditionally placed at the end of the file, but this design decision means
// that playback cannot begin until the entire file has been loaded into memory,
// which translates to significant wait times when playing Quicktime movies on
// the web.  We can solve this problem by rearranging the atoms that make up the
// Quicktime movie.  By placing the "moov" atom near the beginning of the file,
// the movie can start playing almost as fast as it is downloaded.
//
// Moving "moov" shifts every byte of media data, so the chunk offset tables
// ("stco" and "co64") inside it are rewritten by the size of the relocated
// "moov" atom.  When a shifted offset no longer fits in 32 bits the "stco"
// table is widened to "co64", which grows "moov" and therefore the shift
// itself; the patcher repeats until the layout is stable.
//
// Faststart works on a movie held in memory.  WriteFaststarted produces the
// same output from a Source that serves byte ranges, such as a local file or an
// HTTP server, fetching only "ftyp" and "moov" and streaming everything else.
//
// Package qtfaststart is based on the original qt-faststart tool, written in C
// by Mike Melanson and now distributed as part of the FFmpeg project.
package qtfaststart
